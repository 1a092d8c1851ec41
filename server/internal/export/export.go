package export

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-pdf/fpdf"

	"bella/server/internal/model"
)

// ErrUnsupportedFormat 未知导出格式
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Encode 把对话记录序列化为指定格式并做 base64 编码。
func Encode(format model.ExportFormat, rows []model.ConversationRecord) (string, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case "", model.ExportJSON:
		data, err = JSON(rows)
	case model.ExportPDF:
		data, err = PDF(rows)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// JSON 缩进的记录数组，空记录输出 []
func JSON(rows []model.ConversationRecord) ([]byte, error) {
	if rows == nil {
		rows = []model.ConversationRecord{}
	}
	return json.MarshalIndent(rows, "", "  ")
}

// PDF 标题加逐条对话
func PDF(rows []model.ConversationRecord) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	// 内置字体只支持 cp1252，其余字符替换掉
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Bella Chat History", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 12)
	for _, row := range rows {
		header := fmt.Sprintf("[%s] You (%s): %s", row.CreatedAt.Format("2006-01-02 15:04:05"), row.Language, row.UserInput)
		pdf.MultiCell(0, 6, tr(header), "", "L", false)
		pdf.MultiCell(0, 6, tr("Bella: "+row.Reply), "", "L", false)
		pdf.Ln(3)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
