package pdf

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kruetob/moodle-tool-certificate/internal/elements/program"
	"github.com/kruetob/moodle-tool-certificate/internal/models"
	"github.com/kruetob/moodle-tool-certificate/pkg/logger"
)

const (
	defaultFontFamily = "Helvetica"
	defaultFontSize   = 12.0
	previewCode       = "PREVIEW000"
	qrSizePixels      = 256
)

// Renderer turns templates and issues into PDF documents. Element data is
// interpreted per element type; unknown types are skipped so a template with
// an element from a disabled plugin still renders.
type Renderer struct {
	db            *gorm.DB
	verifyBaseURL string
	log           *zap.Logger
}

// NewRenderer constructs a renderer. verifyBaseURL is the public prefix
// encoded into QR code elements.
func NewRenderer(db *gorm.DB, verifyBaseURL string) (*Renderer, error) {
	if db == nil {
		return nil, errors.New("pdf renderer: db is required")
	}
	return &Renderer{
		db:            db,
		verifyBaseURL: strings.TrimRight(verifyBaseURL, "/"),
		log:           logger.WithComponent("pdf"),
	}, nil
}

// RenderPreview produces a PDF of the template with placeholder data.
func (r *Renderer) RenderPreview(ctx context.Context, template *models.Template) ([]byte, error) {
	return r.render(ctx, template, nil)
}

// Render produces the PDF for an issued certificate.
func (r *Renderer) Render(ctx context.Context, template *models.Template, issue *models.Issue) ([]byte, error) {
	if issue == nil {
		return nil, errors.New("pdf renderer: issue is required")
	}
	return r.render(ctx, template, issue)
}

func (r *Renderer) render(ctx context.Context, template *models.Template, issue *models.Issue) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if template == nil || template.ID == "" {
		return nil, errors.New("pdf renderer: template is required")
	}

	pages, err := r.loadPages(ctx, template)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("pdf renderer: template %s has no pages", template.ID)
	}

	first := pageSize(pages[0])
	doc := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: orientation(pages[0]),
		UnitStr:        "mm",
		Size:           first,
	})
	doc.SetAutoPageBreak(false, 0)
	doc.SetFont(defaultFontFamily, "", defaultFontSize)

	for _, page := range pages {
		doc.AddPageFormat(orientation(page), pageSize(page))
		for _, element := range page.Elements {
			if err := r.renderElement(ctx, doc, page, element, issue); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf renderer: output: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) loadPages(ctx context.Context, template *models.Template) ([]models.Page, error) {
	if len(template.Pages) > 0 {
		return template.Pages, nil
	}

	var pages []models.Page
	err := r.db.WithContext(ctx).
		Preload("Elements", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Where("template_id = ?", template.ID).
		Order("sort_order ASC").
		Find(&pages).Error
	if err != nil {
		return nil, fmt.Errorf("pdf renderer: load pages: %w", err)
	}
	return pages, nil
}

func (r *Renderer) renderElement(ctx context.Context, doc *fpdf.Fpdf, page models.Page, element models.Element, issue *models.Issue) error {
	switch element.Type {
	case models.ElementTypeText:
		return r.renderText(doc, page, element)
	case models.ElementTypeProgram:
		return r.renderProgram(doc, page, element, issue)
	case models.ElementTypeImage:
		return r.renderImage(ctx, doc, page, element)
	case models.ElementTypeQRCode:
		return r.renderQRCode(doc, element, issue)
	default:
		r.log.Debug("skipping unknown element type",
			zap.String("element_id", element.ID),
			zap.String("type", element.Type))
		return nil
	}
}

func (r *Renderer) renderText(doc *fpdf.Fpdf, page models.Page, element models.Element) error {
	var data struct {
		Text string `json:"text"`
	}
	if len(element.Data) > 0 {
		if err := json.Unmarshal(element.Data, &data); err != nil {
			return fmt.Errorf("pdf renderer: text element %s: %w", element.ID, err)
		}
	}

	writeText(doc, page, element, data.Text)
	return nil
}

func (r *Renderer) renderProgram(doc *fpdf.Fpdf, page models.Page, element models.Element, issue *models.Issue) error {
	formatter, err := program.NewFromJSON(element.Data)
	if err != nil {
		return fmt.Errorf("pdf renderer: program element %s: %w", element.ID, err)
	}

	var content string
	if issue != nil {
		content, err = formatter.FormatIssueData(issue)
		if err != nil {
			return fmt.Errorf("pdf renderer: program element %s: %w", element.ID, err)
		}
	} else {
		content = formatter.FormatPreviewData()
	}

	writeText(doc, page, element, content)
	return nil
}

func (r *Renderer) renderImage(ctx context.Context, doc *fpdf.Fpdf, page models.Page, element models.Element) error {
	var data struct {
		Image string `json:"image"`
	}
	if err := json.Unmarshal(element.Data, &data); err != nil {
		return fmt.Errorf("pdf renderer: image element %s: %w", element.ID, err)
	}

	var image models.SharedImage
	err := r.db.WithContext(ctx).First(&image, "name = ?", data.Image).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Deleted shared images leave a gap rather than breaking the render.
		r.log.Warn("shared image missing", zap.String("name", data.Image))
		return nil
	}
	if err != nil {
		return fmt.Errorf("pdf renderer: load image %q: %w", data.Image, err)
	}

	imageType := typeFromMime(image.MimeType)
	if imageType == "" {
		return fmt.Errorf("pdf renderer: unsupported image mime type %q", image.MimeType)
	}

	opts := fpdf.ImageOptions{ImageType: imageType}
	doc.RegisterImageOptionsReader(image.Name, opts, bytes.NewReader(image.Content))

	width := float64(element.Width)
	if width <= 0 {
		width = float64(page.Width)
	}
	doc.ImageOptions(image.Name, float64(element.PosX), float64(element.PosY), width, 0, false, opts, 0, "")
	return doc.Error()
}

func (r *Renderer) renderQRCode(doc *fpdf.Fpdf, element models.Element, issue *models.Issue) error {
	code := previewCode
	if issue != nil {
		code = issue.Code
	}

	png, err := qrcode.Encode(r.verifyBaseURL+"/"+code, qrcode.Medium, qrSizePixels)
	if err != nil {
		return fmt.Errorf("pdf renderer: qr element %s: %w", element.ID, err)
	}

	name := "qr-" + element.ID
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(png))

	width := float64(element.Width)
	if width <= 0 {
		width = 30
	}
	doc.ImageOptions(name, float64(element.PosX), float64(element.PosY), width, width, false, opts, 0, "")
	return doc.Error()
}

func writeText(doc *fpdf.Fpdf, page models.Page, element models.Element, content string) {
	size := element.FontSize
	if size <= 0 {
		size = defaultFontSize
	}
	doc.SetFont(defaultFontFamily, "", size)
	doc.SetXY(float64(element.PosX), float64(element.PosY))

	width := float64(element.Width)
	if width <= 0 {
		width = float64(page.Width - element.PosX - page.MarginRight)
	}

	lineHeight := size * 0.5
	doc.MultiCell(width, lineHeight, htmlToPlain(content), "", "L", false)
}

// htmlToPlain converts the limited HTML produced by element formatters into
// plain text for PDF output.
func htmlToPlain(s string) string {
	return strings.ReplaceAll(program.NormalizeLineBreaks(s), "<br />", "\n")
}

func typeFromMime(mime string) string {
	switch strings.ToLower(mime) {
	case "image/jpeg", "image/jpg":
		return "JPG"
	case "image/png":
		return "PNG"
	case "image/gif":
		return "GIF"
	default:
		return ""
	}
}

func pageSize(page models.Page) fpdf.SizeType {
	w, h := float64(page.Width), float64(page.Height)
	if w <= 0 {
		w = 297
	}
	if h <= 0 {
		h = 210
	}
	if w > h {
		// fpdf expects portrait dimensions plus an orientation flag.
		return fpdf.SizeType{Wd: h, Ht: w}
	}
	return fpdf.SizeType{Wd: w, Ht: h}
}

func orientation(page models.Page) string {
	if page.Width > page.Height {
		return "L"
	}
	return "P"
}
