package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/zoeyai/scrollstitch/internal/logger"
	"github.com/zoeyai/scrollstitch/pkg/config"
	"github.com/zoeyai/scrollstitch/pkg/device"
	"github.com/zoeyai/scrollstitch/pkg/mirror"
	"github.com/zoeyai/scrollstitch/pkg/ocr"
	"github.com/zoeyai/scrollstitch/pkg/roi"
	"github.com/zoeyai/scrollstitch/pkg/session"
	"github.com/zoeyai/scrollstitch/pkg/stitch"
)

// 版本信息 (可通过 ldflags 注入)
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, cfg *config.Settings, args []string) error
}

var commands = []command{
	{"autoscroll", "自动滚动截图，检测到底部后停止", runAutoscroll},
	{"screenshot", "截取一张屏幕截图", runScreenshot},
	{"swipe", "执行一次滑动", runSwipe},
	{"stitch", "按文件名时间排序后拼接图像", runStitch},
	{"crop", "框选区域并批量裁剪图像", runCrop},
	{"ocr", "对图像做文字识别", runOCR},
	{"mirror", "启动 scrcpy 镜像或录屏", runMirror},
	{"config", "查看、保存或清除配置", runConfig},
}

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	name, args := os.Args[1], os.Args[2:]
	switch name {
	case "version", "-version", "--version":
		printVersion()
		return
	case "help", "-help", "--help", "-h":
		printHelp()
		return
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == name {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Printf("[ERROR] 未知命令: %s\n\n", name)
		printHelp()
		os.Exit(1)
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("[WARN] 加载配置失败: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.run(ctx, cfg, args); err != nil {
		logger.Error("%s 失败: %v", cmd.name, err)
		logger.Default().Close()
		os.Exit(1)
	}
	logger.Default().Close()
}

// options 各命令共用的参数，默认值取自配置文件
type options struct {
	fs     *flag.FlagSet
	cfg    *config.Settings
	serial string
	save   bool
}

func newOptions(name string, cfg *config.Settings) *options {
	o := &options{fs: flag.NewFlagSet(name, flag.ExitOnError), cfg: cfg}
	o.fs.StringVar(&cfg.ADBPath, "adb", cfg.ADBPath, "adb 可执行文件路径")
	o.fs.StringVar(&o.serial, "serial", "", "设备序列号")
	o.fs.StringVar(&cfg.OutputDir, "out", cfg.OutputDir, "输出目录")
	o.fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "日志级别 DEBUG/INFO/WARN/ERROR")
	o.fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "日志文件")
	o.fs.BoolVar(&o.save, "save", false, "保存配置到本地")
	return o
}

func (o *options) captureFlags() {
	o.fs.StringVar(&o.cfg.SwipeDirection, "direction", o.cfg.SwipeDirection, "手指滑动方向 UP/DOWN")
	o.fs.IntVar(&o.cfg.SwipeDurationMs, "duration", o.cfg.SwipeDurationMs, "滑动时长 (毫秒, 1-499)")
	o.fs.StringVar(&o.cfg.OCRMode, "ocr", o.cfg.OCRMode, "截图后处理 disabled/ocrmypdf/paddle/uidump")
	o.fs.StringVar(&o.cfg.OCRMyPDFPath, "ocrmypdf", o.cfg.OCRMyPDFPath, "ocrmypdf 可执行文件路径")
}

func (o *options) stitchFlags() {
	o.fs.IntVar(&o.cfg.OverlapRows, "overlap", o.cfg.OverlapRows, "拼接模板行数")
	o.fs.Float64Var(&o.cfg.MinConfidence, "min-confidence", o.cfg.MinConfidence, "最低匹配置信度")
}

// parse 解析参数，校验配置并初始化日志
func (o *options) parse(args []string) error {
	if err := o.fs.Parse(args); err != nil {
		return err
	}
	if err := o.cfg.Validate(); err != nil {
		return err
	}

	logger.Default().SetLevel(logger.ParseLevel(o.cfg.LogLevel))
	if o.cfg.LogFile != "" {
		if err := logger.Default().SetFile(o.cfg.LogFile); err != nil {
			fmt.Printf("[WARN] 打开日志文件失败: %v\n", err)
		}
	}

	if o.save {
		if err := config.Save(o.cfg); err != nil {
			fmt.Printf("[WARN] 保存配置失败: %v\n", err)
		} else {
			fmt.Printf("[INFO] 配置已保存到 %s\n", config.GetDefaultManager().GetConfigFile())
		}
	}
	return nil
}

func (o *options) adb() *device.ADB {
	return device.NewADB(o.cfg.ADBPath, o.serial)
}

func (o *options) stitchOptions() stitch.Options {
	return stitch.Options{
		OverlapRows:   o.cfg.OverlapRows,
		MinConfidence: o.cfg.MinConfidence,
		OutputDir:     o.cfg.OutputDir,
	}
}

func runAutoscroll(ctx context.Context, cfg *config.Settings, args []string) error {
	o := newOptions("autoscroll", cfg)
	o.captureFlags()
	o.stitchFlags()
	o.fs.IntVar(&cfg.SwipeCount, "count", cfg.SwipeCount, "截图次数 (0 表示直到到底, 否则 2-100)")
	o.fs.Float64Var(&cfg.SwipeDelay, "delay", cfg.SwipeDelay, "每次滑动后的等待 (秒, 0-2)")
	o.fs.StringVar(&cfg.PostProcessing, "post", cfg.PostProcessing, "后处理 none/crop/crop_stitch")
	o.fs.IntVar(&cfg.HashThreshold, "hash-threshold", cfg.HashThreshold, "重复判定的哈希距离阈值")
	if err := o.parse(args); err != nil {
		return err
	}

	adb := o.adb()
	if version, err := adb.AndroidVersion(ctx); err == nil {
		logger.Info("Android %s", version)
	}

	annotator, closeAnnotator, err := session.NewAnnotator(cfg, adb)
	if err != nil {
		return err
	}
	defer closeAnnotator()

	runner := session.NewRunner(adb, session.Options{
		OutputDir:     cfg.OutputDir,
		Direction:     device.Direction(cfg.SwipeDirection),
		DurationMs:    cfg.SwipeDurationMs,
		Count:         cfg.SwipeCount,
		Delay:         time.Duration(cfg.SwipeDelay * float64(time.Second)),
		HashThreshold: cfg.HashThreshold,
		Annotator:     annotator,
	})

	var problems problemCounter
	logger.Default().AddHook(problems.hook)

	logger.Info("开始自动滚动截图，按 Ctrl+C 停止")
	var result *session.Result
	for e := range runner.Start(ctx) {
		switch e.Kind {
		case session.EventSwiped:
			logger.Debug("已滑动, 准备第 %d 张截图", e.Index+1)
		case session.EventDone:
			result = e.Result
		}
	}

	if result == nil {
		return ctx.Err()
	}
	logger.Info("自动滚动结束，共 %d 张截图 (%s)", result.Count, result.Stop)
	if summary := problems.String(); summary != "" {
		logger.Info("本次运行 %s", summary)
	}
	if result.Err != nil && result.Stop != session.StopCancelled {
		return result.Err
	}
	if result.Stop == session.StopCancelled {
		return nil
	}

	_, err = session.PostProcess(result, session.PostOptions{
		Mode:      cfg.PostProcessing,
		OutputDir: cfg.OutputDir,
		Stitch:    o.stitchOptions(),
	})
	return err
}

// problemCounter 统计运行期间的警告与错误日志
type problemCounter struct {
	warns  atomic.Int64
	errors atomic.Int64
}

func (c *problemCounter) hook(level logger.Level, _ string) {
	switch level {
	case logger.WARN:
		c.warns.Add(1)
	case logger.ERROR:
		c.errors.Add(1)
	}
}

// String 无警告和错误时为空
func (c *problemCounter) String() string {
	w, e := c.warns.Load(), c.errors.Load()
	if w == 0 && e == 0 {
		return ""
	}
	return fmt.Sprintf("%d 条警告, %d 条错误", w, e)
}

func runScreenshot(ctx context.Context, cfg *config.Settings, args []string) error {
	o := newOptions("screenshot", cfg)
	o.captureFlags()
	if err := o.parse(args); err != nil {
		return err
	}

	adb := o.adb()
	annotator, closeAnnotator, err := session.NewAnnotator(cfg, adb)
	if err != nil {
		return err
	}
	defer closeAnnotator()

	result := session.NewRunner(adb, session.Options{
		OutputDir: cfg.OutputDir,
		Count:     1,
		Annotator: annotator,
	}).Run(ctx)
	if result.Err != nil {
		return result.Err
	}
	fmt.Println(result.Paths[0])
	return nil
}

func runSwipe(ctx context.Context, cfg *config.Settings, args []string) error {
	o := newOptions("swipe", cfg)
	o.captureFlags()
	if err := o.parse(args); err != nil {
		return err
	}

	adb := o.adb()
	size, err := adb.ScreenSize(ctx)
	if err != nil {
		logger.Warn("%v", err)
	}
	s, err := device.NewSwipe(size, device.Direction(cfg.SwipeDirection), cfg.SwipeDurationMs)
	if err != nil {
		return err
	}
	return adb.Swipe(ctx, s)
}

func runStitch(_ context.Context, cfg *config.Settings, args []string) error {
	o := newOptions("stitch", cfg)
	o.stitchFlags()
	direction := o.fs.String("stitch-direction", string(stitch.Down), "拼接方向 DOWN (从上到下) / UP (从下到上)")
	if err := o.parse(args); err != nil {
		return err
	}
	if o.fs.NArg() == 0 {
		return fmt.Errorf("请指定要拼接的图像")
	}

	dir, err := stitch.ParseDirection(*direction)
	if err != nil {
		return err
	}
	result, err := session.ManualStitch(o.fs.Args(), dir, o.stitchOptions())
	if err != nil {
		return err
	}
	fmt.Println(result.Path)
	return nil
}

func runCrop(_ context.Context, cfg *config.Settings, args []string) error {
	o := newOptions("crop", cfg)
	if err := o.parse(args); err != nil {
		return err
	}
	paths := o.fs.Args()
	if len(paths) == 0 {
		return fmt.Errorf("请指定要裁剪的图像")
	}

	rect, err := roi.WindowSelector{}.Select(paths[0])
	if err != nil {
		return err
	}
	if rect.Empty() {
		return nil
	}
	cropped, err := roi.CropAll(paths, rect, filepath.Dir(paths[0]))
	for _, p := range cropped {
		fmt.Println(p)
	}
	return err
}

func runOCR(ctx context.Context, cfg *config.Settings, args []string) error {
	o := newOptions("ocr", cfg)
	o.captureFlags()
	if err := o.parse(args); err != nil {
		return err
	}
	paths := o.fs.Args()
	if len(paths) == 0 {
		return fmt.Errorf("请指定要识别的图像")
	}

	switch cfg.OCRMode {
	case config.OCRPaddle:
		rec, err := ocr.NewTextRecognizer(ocr.DefaultModelConfig())
		if err != nil {
			return err
		}
		defer rec.Close()
		for _, p := range paths {
			out, err := ocr.WriteText(rec, p, "")
			if err != nil {
				return err
			}
			fmt.Println(out)
		}
	default:
		runner := ocr.NewPDFRunner(cfg.OCRMyPDFPath, "")
		for _, p := range paths {
			out, err := runner.Run(ctx, p)
			if err != nil {
				return err
			}
			fmt.Println(out)
		}
	}
	return nil
}

func runMirror(ctx context.Context, cfg *config.Settings, args []string) error {
	o := newOptions("mirror", cfg)
	o.fs.StringVar(&cfg.ScrcpyPath, "scrcpy", cfg.ScrcpyPath, "scrcpy 可执行文件路径")
	record := o.fs.Bool("record", false, "同时录屏为 mp4")
	if err := o.parse(args); err != nil {
		return err
	}

	mode := mirror.Mirror
	if *record {
		mode = mirror.Record
		if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
			return fmt.Errorf("创建输出目录失败: %w", err)
		}
	}
	launcher := mirror.NewLauncher(mirror.Options{Path: cfg.ScrcpyPath, Mode: mode, OutputDir: cfg.OutputDir})
	done, err := launcher.Start(ctx)
	if err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		launcher.Stop()
		<-done
		return nil
	}
}

func runConfig(_ context.Context, cfg *config.Settings, args []string) error {
	o := newOptions("config", cfg)
	o.captureFlags()
	o.stitchFlags()
	clearSaved := o.fs.Bool("clear", false, "删除已保存的配置")
	if err := o.parse(args); err != nil {
		return err
	}

	if *clearSaved {
		if err := config.Clear(); err != nil {
			return err
		}
		fmt.Println("[INFO] 配置已清除")
		return nil
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Printf("配置文件: %s (存在: %v)\n", config.GetDefaultManager().GetConfigFile(), config.GetDefaultManager().Exists())
	fmt.Println(string(data))
	return nil
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("scrollstitch v%s\n", Version)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}

// printHelp 打印帮助信息
func printHelp() {
	fmt.Println("scrollstitch - Android 长截图工具")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  scrollstitch <命令> [选项] [文件...]")
	fmt.Println()
	fmt.Println("命令:")
	for _, c := range commands {
		fmt.Printf("  %-12s %s\n", c.name, c.usage)
	}
	fmt.Printf("  %-12s %s\n", "version", "显示版本信息")
	fmt.Printf("  %-12s %s\n", "help", "显示帮助信息")
	fmt.Println()
	fmt.Println("通用选项:")
	fmt.Println("  -adb string        adb 可执行文件路径")
	fmt.Println("  -serial string     设备序列号")
	fmt.Println("  -out string        输出目录")
	fmt.Println("  -save              保存配置到本地")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  # 一直向上滑动直到到底，然后裁剪并拼接")
	fmt.Println("  scrollstitch autoscroll -direction UP -post crop_stitch")
	fmt.Println()
	fmt.Println("  # 截图 10 次，每张导出界面文字")
	fmt.Println("  scrollstitch autoscroll -count 10 -ocr uidump")
	fmt.Println()
	fmt.Println("  # 手动拼接已裁剪的截图")
	fmt.Println("  scrollstitch stitch AndroidScreenOutput/*_cropped.png")
	fmt.Println()
	fmt.Printf("配置文件位置: %s\n", config.GetDefaultManager().GetConfigFile())
}
