package contract

import (
	"bytes"
	_ "embed"
	"fmt"
	"math"

	"github.com/go-pdf/fpdf"

	"github.com/Alltagsbruecke/SignUp-APP/internal/record"
)

// Page geometry in millimetres.
const (
	marginLeft     = 20.0
	lineHeight     = 6.0
	signatureBoxW  = 80.0
	signatureBoxH  = 40.0
	signatureImage = "signature"
)

// fontFamily is DejaVu Sans Condensed, embedded so every name and field
// value prints as entered, not only the characters of a core PDF font.
const fontFamily = "DejaVu"

var (
	//go:embed fonts/DejaVuSansCondensed.ttf
	fontRegular []byte
	//go:embed fonts/DejaVuSansCondensed-Bold.ttf
	fontBold []byte
)

// Ink color of signature strokes, as on the original pad.
var inkRGB = [3]int{17, 24, 39}

// BuildDocument renders a contract PDF in memory. It touches no files and
// returns identical bytes for identical inputs.
//
// The signature must already be validated; a blank signature is rejected
// again here so no contract can be built without a mark.
func BuildDocument(snap record.Snapshot, sig Signature, tmpl Template, b record.Branding, meta Meta) ([]byte, error) {
	const op = "render"

	if snap.IsZero() {
		return nil, record.NewValidationError(op, "snapshot is empty")
	}
	sig, err := sig.Normalize()
	if err != nil {
		return nil, err
	}
	text, err := ComposeText(snap, tmpl, b, meta)
	if err != nil {
		return nil, err
	}
	digest, err := snap.Digest()
	if err != nil {
		return nil, fmt.Errorf("%s: snapshot digest: %w", op, err)
	}
	ar, ag, ab, err := b.AccentRGB()
	if err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddUTF8FontFromBytes(fontFamily, "", fontRegular)
	pdf.AddUTF8FontFromBytes(fontFamily, "B", fontBold)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(snap.TakenAt())
	pdf.SetModificationDate(snap.TakenAt())
	pdf.SetTitle(text.Title, true)
	if b.CompanyName != "" {
		pdf.SetAuthor(b.CompanyName, true)
	}
	pdf.SetMargins(marginLeft, 20, marginLeft)
	pdf.SetAutoPageBreak(true, 25)

	pdf.SetFooterFunc(func() {
		pdf.SetY(-18)
		pdf.SetFont(fontFamily, "", 7)
		pdf.SetTextColor(107, 114, 128)
		pdf.CellFormat(0, 4, text.Footer, "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 4, "SHA-256: "+digest, "", 0, "L", false, 0, "")
	})

	pdf.AddPage()

	pdf.SetFont(fontFamily, "B", 16)
	pdf.SetTextColor(ar, ag, ab)
	pdf.CellFormat(0, 10, text.Title, "", 1, "L", false, 0, "")
	pdf.SetDrawColor(ar, ag, ab)
	pdf.SetLineWidth(0.6)
	pageW, pageH := pdf.GetPageSize()
	pdf.Line(marginLeft, pdf.GetY(), pageW-marginLeft, pdf.GetY())
	pdf.Ln(4)

	pdf.SetFont(fontFamily, "", 10)
	pdf.SetTextColor(31, 41, 55)
	pdf.MultiCell(0, lineHeight, text.Body, "", "L", false)
	pdf.Ln(8)

	_, _, _, bottom := pdf.GetMargins()
	if pdf.GetY()+lineHeight+signatureBoxH > pageH-bottom {
		pdf.AddPage()
	}

	pdf.SetFont(fontFamily, "B", 12)
	pdf.SetTextColor(ar, ag, ab)
	pdf.CellFormat(0, lineHeight, text.SignatureLabel, "", 1, "L", false, 0, "")
	pdf.Ln(2)

	top := pdf.GetY()
	if sig.IsRaster() {
		drawImage(pdf, sig, top)
	} else {
		drawStrokes(pdf, sig, top)
	}
	pdf.SetY(top + signatureBoxH)

	pdf.SetDrawColor(209, 213, 219)
	pdf.SetLineWidth(0.2)
	pdf.Line(marginLeft, pdf.GetY(), marginLeft+signatureBoxW, pdf.GetY())

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%s: build pdf: %w", op, err)
	}
	return buf.Bytes(), nil
}

// drawStrokes scales pad coordinates into the signature box, keeping the
// aspect ratio, and draws each stroke as connected line segments.
func drawStrokes(pdf *fpdf.Fpdf, sig Signature, top float64) {
	scale := math.Min(signatureBoxW/sig.Width, signatureBoxH/sig.Height)

	pdf.SetDrawColor(inkRGB[0], inkRGB[1], inkRGB[2])
	pdf.SetLineWidth(0.5)
	pdf.SetLineCapStyle("round")
	for _, st := range sig.Strokes {
		for i := 1; i < len(st); i++ {
			p1, p2 := st[i-1], st[i]
			pdf.Line(
				marginLeft+p1.X*scale, top+p1.Y*scale,
				marginLeft+p2.X*scale, top+p2.Y*scale,
			)
		}
	}
}

// drawImage fits the PNG into the signature box.
func drawImage(pdf *fpdf.Fpdf, sig Signature, top float64) {
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	info := pdf.RegisterImageOptionsReader(signatureImage, opts, bytes.NewReader(sig.PNG))
	if info == nil {
		return
	}
	w, h := signatureBoxW, signatureBoxW*info.Height()/info.Width()
	if h > signatureBoxH {
		w, h = signatureBoxH*info.Width()/info.Height(), signatureBoxH
	}
	pdf.ImageOptions(signatureImage, marginLeft, top, w, h, false, opts, 0, "")
}
