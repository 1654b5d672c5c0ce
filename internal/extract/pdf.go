package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/macitch/Bridgea/internal/link"
)

// fromPDF builds metadata from a PDF's document information dictionary.
// The pdf library panics on some malformed files, so the whole read is
// wrapped in a recover.
func fromPDF(raw []byte, url string) (meta link.Metadata, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reading PDF %s: %v", url, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return link.Metadata{}, fmt.Errorf("opening PDF %s: %w", url, err)
	}

	meta = link.NewMetadata(url)

	info := reader.Trailer().Key("Info")
	if info.Kind() == pdf.Dict {
		meta.Title = infoString(info, "Title")
		meta.Description = infoString(info, "Subject")
		meta.Tags = link.Dedupe(splitCommaList(infoString(info, "Keywords")))
	}

	return meta, nil
}

func infoString(info pdf.Value, key string) string {
	v := info.Key(key)
	if v.Kind() != pdf.String {
		return ""
	}
	return v.Text()
}
