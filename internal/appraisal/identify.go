package appraisal

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/FranksOps/appraise/internal/llm"
)

// ErrInvalidImage is returned for image data that is not base64.
var ErrInvalidImage = errors.New("imageData is not valid base64")

var dataURLPrefix = regexp.MustCompile(`^data:(image/[a-zA-Z0-9.+-]+);base64,`)

// Identification is the normalized description of a photographed item.
// Every field is always present in JSON.
type Identification struct {
	ItemName     string   `json:"itemName"`
	Description  string   `json:"description"`
	VisiblePrice *float64 `json:"visiblePrice"`
	Period       string   `json:"period"`
	Materials    string   `json:"materials"`
	Condition    string   `json:"condition"`
	SearchTerms  []string `json:"searchTerms"`
}

// Identifier asks a vision-capable model what an item is.
type Identifier struct {
	client llm.Client
	logger *slog.Logger
}

// NewIdentifier returns an Identifier using client.
func NewIdentifier(client llm.Client, logger *slog.Logger) *Identifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Identifier{client: client, logger: logger}
}

const identifyPrompt = `You are an antiques specialist. Identify the item in this photo.
Reply with JSON only, using exactly these keys:
{"itemName": "", "description": "", "visiblePrice": null, "period": "", "materials": "", "condition": "", "searchTerms": []}
visiblePrice is a number if a price tag or sticker is legible, otherwise null.
searchTerms are 3 to 6 short marketplace search queries for similar items.`

// Identify sends the image to the model. imageData may be raw base64 or a
// data URL.
func (id *Identifier) Identify(ctx context.Context, imageData string) (Identification, error) {
	mime, payload := splitDataURL(imageData)
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return Identification{}, ErrInvalidImage
	}

	reply, err := id.client.Complete(ctx, []llm.Message{
		llm.UserImage(identifyPrompt, fmt.Sprintf("data:%s;base64,%s", mime, payload)),
	})
	if err != nil {
		return Identification{}, err
	}
	return id.normalize(reply), nil
}

func splitDataURL(s string) (mime, payload string) {
	s = strings.TrimSpace(s)
	if m := dataURLPrefix.FindStringSubmatch(s); m != nil {
		return m[1], s[len(m[0]):]
	}
	return "image/jpeg", s
}

// normalize maps whatever the model produced onto Identification. A reply
// that is not JSON becomes the description.
func (id *Identifier) normalize(reply string) Identification {
	out := Identification{SearchTerms: []string{}}

	var raw map[string]any
	if err := decodeReply(reply, &raw); err != nil {
		id.logger.Warn("unparseable identification reply", "err", err)
		out.Description = strings.TrimSpace(reply)
		return out
	}

	out.ItemName = stringField(raw["itemName"])
	out.Description = stringField(raw["description"])
	out.Period = stringField(raw["period"])
	out.Materials = stringField(raw["materials"])
	out.Condition = stringField(raw["condition"])
	out.VisiblePrice = priceField(raw["visiblePrice"])

	switch terms := raw["searchTerms"].(type) {
	case []any:
		for _, t := range terms {
			if s := stringField(t); s != "" {
				out.SearchTerms = append(out.SearchTerms, s)
			}
		}
	case string:
		for _, s := range strings.Split(terms, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out.SearchTerms = append(out.SearchTerms, s)
			}
		}
	}
	return out
}

func stringField(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			if s := stringField(p); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

func priceField(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case string:
		s := strings.NewReplacer("$", "", ",", "", "USD", "").Replace(strings.TrimSpace(t))
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
