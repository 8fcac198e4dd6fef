package suggest

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var errInvalidJSON = errors.New("response is not valid JSON")

// xmlTopLevel mirrors toplevel/CompleteSuggestion/suggestion@data
type xmlTopLevel struct {
	XMLName     xml.Name                `xml:"toplevel"`
	Suggestions []xmlCompleteSuggestion `xml:"CompleteSuggestion"`
}

type xmlCompleteSuggestion struct {
	Suggestion []xmlSuggestion `xml:"suggestion"`
}

type xmlSuggestion struct {
	Data string `xml:"data,attr"`
}

// Decode parses a response body in the given mode
func Decode(mode Mode, body []byte, contentType string) ([]string, error) {
	switch mode {
	case ModeList:
		return DecodeList(body, contentType)
	case ModeDocument:
		return DecodeDocument(body)
	}
	return nil, fmt.Errorf("unknown response mode %q", mode)
}

// DecodeList extracts the second top-level element of a JSON array.
// Responses that declare a single-byte charset are transcoded first.
func DecodeList(body []byte, contentType string) ([]string, error) {
	if enc := singleByteCharset(contentType); enc != nil {
		converted, err := enc.NewDecoder().Bytes(body)
		if err != nil {
			return nil, fmt.Errorf("charset conversion failed: %w", err)
		}
		body = converted
	}

	if !gjson.ValidBytes(body) {
		return nil, errInvalidJSON
	}

	suggestions := []string{}
	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		return suggestions, nil
	}

	list := root.Get("1")
	if !list.IsArray() {
		return suggestions, nil
	}

	list.ForEach(func(_, value gjson.Result) bool {
		if value.Type == gjson.String {
			suggestions = append(suggestions, value.String())
		}
		return true
	})
	return suggestions, nil
}

// DecodeDocument reads the legacy XML document. The endpoint emits this mode
// in ISO-8859-1 so the bytes are always mapped through Latin-1 before parsing.
func DecodeDocument(body []byte) ([]string, error) {
	reader := transform.NewReader(bytes.NewReader(body), charmap.ISO8859_1.NewDecoder())

	decoder := xml.NewDecoder(reader)
	// Already UTF-8 after the transform; the declaration is ignored.
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	var doc xmlTopLevel
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}

	suggestions := make([]string, 0, len(doc.Suggestions))
	for _, complete := range doc.Suggestions {
		for _, node := range complete.Suggestion {
			suggestions = append(suggestions, node.Data)
		}
	}
	return suggestions, nil
}

func singleByteCharset(contentType string) encoding.Encoding {
	if contentType == "" {
		return nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil
	}

	switch strings.ToLower(params["charset"]) {
	case "iso-8859-1", "latin1":
		return charmap.ISO8859_1
	case "windows-1252", "cp1252":
		return charmap.Windows1252
	}
	return nil
}
