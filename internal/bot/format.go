package bot

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/GTDGit/dealfinder/internal/models"
)

// Formatter renders page captions from the message templates.
type Formatter struct {
	msgs    *Messages
	printer *message.Printer
}

func NewFormatter(msgs *Messages) *Formatter {
	return &Formatter{msgs: msgs, printer: message.NewPrinter(language.Hebrew)}
}

// Caption renders every product of a page followed by the signature.
func (f *Formatter) Caption(products []models.ProductRecord) string {
	blocks := make([]string, 0, len(products)+1)
	for i, p := range products {
		blocks = append(blocks, f.Product(p, i))
	}
	if f.msgs.Signature != "" {
		blocks = append(blocks, f.msgs.Signature)
	}
	return strings.Join(blocks, "\n\n")
}

// Product renders one product at a zero-based position on its page.
func (f *Formatter) Product(p models.ProductRecord, position int) string {
	r := strings.NewReplacer(
		"{medal}", f.msgs.Medal(position),
		"{title}", p.DisplayTitle(),
		"{cart}", f.msgs.Icons.Cart,
		"{sales}", f.count(p.SalesCount),
		"{star}", f.msgs.Icons.Star,
		"{rating}", f.rating(p.Rating),
		"{reviews}", f.count(p.ReviewCount),
		"{money}", f.msgs.Icons.Money,
		"{price}", f.price(p),
		"{link_icon}", f.msgs.Icons.Link,
		"{link}", p.AffiliateLink,
	)
	lines := []string{f.msgs.Lines.Title, f.msgs.Lines.Sales, f.msgs.Lines.Rating, f.msgs.Lines.Price, f.msgs.Lines.Link}
	for i, l := range lines {
		lines[i] = r.Replace(l)
	}
	return strings.Join(lines, "\n")
}

func (f *Formatter) count(v models.OptInt) string {
	if !v.Valid {
		return f.msgs.MissingValue
	}
	return f.printer.Sprintf("%d", v.Value)
}

func (f *Formatter) rating(v models.OptFloat) string {
	if !v.Valid {
		return f.msgs.MissingValue
	}
	return f.printer.Sprintf("%.1f", v.Value)
}

func (f *Formatter) price(p models.ProductRecord) string {
	if !p.Price.Valid {
		return f.msgs.MissingValue
	}
	return p.Price.Decimal.StringFixed(2)
}
