// Package uidump 从 uiautomator 导出的 UI 层级 XML 中提取文本
package uidump

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	openTag  = []byte("<hierarchy")
	closeTag = []byte("</hierarchy>")
)

// ErrNoHierarchy 数据中没有 hierarchy 节点
var ErrNoHierarchy = errors.New("未找到 XML hierarchy 数据")

// ExtractText 提取所有非空 text 属性，按文档顺序返回
// exec-out 的输出前后可能夹带 "UI hierchary dumped to" 之类的提示，只解析 hierarchy 部分
func ExtractText(data []byte) ([]string, error) {
	start := bytes.Index(data, openTag)
	end := bytes.LastIndex(data, closeTag)
	if start == -1 || end == -1 || end < start {
		return nil, ErrNoHierarchy
	}

	dec := xml.NewDecoder(bytes.NewReader(data[start : end+len(closeTag)]))
	var texts []string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("解析 XML 失败: %w", err)
		}

		el, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		for _, attr := range el.Attr {
			if attr.Name.Local == "text" && strings.TrimSpace(attr.Value) != "" {
				texts = append(texts, attr.Value)
			}
		}
	}
	return texts, nil
}

// WriteText 将文本逐行写入文件
func WriteText(path string, texts []string) error {
	var buf strings.Builder
	for _, t := range texts {
		buf.WriteString(t)
		buf.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(buf.String()), 0644); err != nil {
		return fmt.Errorf("写入文本失败: %w", err)
	}
	return nil
}
