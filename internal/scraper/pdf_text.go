package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFTextExtractor turns a PDF binary into plain text, one visual line per line.
type PDFTextExtractor interface {
	ExtractText(ctx context.Context, pdf []byte) (string, error)
}

// NewPDFTextExtractor prefers the external binary and falls back to pdfcpu
// when it is not installed.
func NewPDFTextExtractor(bin string) PDFTextExtractor {
	bin = strings.TrimSpace(bin)
	if bin != "" {
		if path, err := exec.LookPath(bin); err == nil {
			return CommandTextExtractor{Bin: path}
		}
	}
	return PdfcpuTextExtractor{}
}

// CommandTextExtractor runs `<bin> -enc UTF-8 <file> -` over a temp file that
// exists only for the duration of one call.
type CommandTextExtractor struct {
	Bin     string
	TempDir string
}

func (c CommandTextExtractor) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	if strings.TrimSpace(c.Bin) == "" {
		return "", fmt.Errorf("pdftotext binary not configured")
	}

	f, err := os.CreateTemp(c.TempDir, "pricelist-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp pdf: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(pdf); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write temp pdf: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temp pdf: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Bin, "-enc", "UTF-8", path, "-")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("pdftotext: %w: %s", err, msg)
		}
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return stdout.String(), nil
}

// PdfcpuTextExtractor reads text-showing operators out of each page content
// stream. It only handles simple encodings; layout is approximated by starting
// a new line on every positioning operator.
type PdfcpuTextExtractor struct{}

func (PdfcpuTextExtractor) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	conf := model.NewDefaultConfiguration()
	pctx, err := api.ReadValidateAndOptimize(bytes.NewReader(pdf), conf)
	if err != nil {
		return "", fmt.Errorf("pdfcpu read: %w", err)
	}

	var sb strings.Builder
	for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		r, err := pdfcpu.ExtractPageContent(pctx, pageNr)
		if err != nil || r == nil {
			continue
		}
		data, err := io.ReadAll(r)
		if err != nil || len(data) == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(contentStreamText(data))
	}
	return sb.String(), nil
}

var pdfStringRe = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)`)

func contentStreamText(data []byte) string {
	var sb strings.Builder
	newline := func() {
		s := sb.String()
		if s != "" && !strings.HasSuffix(s, "\n") {
			sb.WriteByte('\n')
		}
	}

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				sb.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			newline()
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				sb.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")),
			bytes.Equal(line, []byte("T*")), bytes.Equal(line, []byte("ET")):
			newline()
		}
	}
	return sb.String()
}

func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		default:
			if raw[i] < '0' || raw[i] > '7' {
				sb.WriteByte(raw[i])
				continue
			}
			val := int(raw[i] - '0')
			for n := 0; n < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
				i++
				val = val*8 + int(raw[i]-'0')
			}
			sb.WriteByte(byte(val))
		}
	}
	return sb.String()
}
