package plugins

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"io"
	"strings"
	"unicode/utf8"

	"git.twitter.biz/focus/rce/receivegate/internal/checks"
	"git.twitter.biz/focus/rce/receivegate/internal/git"
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/ianaindex"
	"gopkg.in/yaml.v3"
	"mvdan.cc/sh/v3/syntax"
)

type (
	// validateFn decides about one file. A non-nil error is what is wrong
	// with it.
	validateFn func(ctx *checks.Context, e *git.DiffEntry, data []byte) error

	// contentCheck runs a validateFn over every changed file its filter
	// selects and fails when any file is rejected. The outcome detail is
	// checks.FileErrors.
	contentCheck struct {
		name     string
		label    string
		filter   *fileFilter
		validate validateFn
	}
)

var _ checks.Check = (*contentCheck)(nil)

func (c *contentCheck) Name() string { return c.name }

func (c *contentCheck) Evaluate(ctx *checks.Context) (*checks.Outcome, error) {
	bad, err := c.filter.forEachBlob(ctx, func(e *git.DiffEntry, data []byte) error {
		return c.validate(ctx, e, data)
	})
	if err != nil {
		return nil, err
	}
	if len(bad) > 0 {
		return checks.Fail(bad), nil
	}
	return checks.Pass(nil), nil
}

func (c *contentCheck) React(ctx *checks.Context, o *checks.Outcome) error {
	if o.OK() {
		ctx.Logger().Debugf("Check %s passed for %s", c.label, ctx.Update.RefName)
		return nil
	}

	bad, _ := o.Detail.(checks.FileErrors)
	for _, fe := range bad {
		ctx.Logger().Errorf("Check %s failed for file: '%s' with error: '%s'", c.label, fe.Path, fe.Err)
	}
	return nil
}

// lineCol turns a byte offset into 1-based line and column numbers.
func lineCol(data []byte, offset int64) (line, col int) {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	head := data[:offset]
	line = bytes.Count(head, []byte("\n")) + 1
	col = int(offset) - bytes.LastIndexByte(head, '\n')
	return line, col
}

// validateJSON accepts exactly one JSON value, optionally surrounded by
// whitespace. An empty file is not JSON.
func validateJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		if err == io.EOF {
			return errors.New("no JSON value found, the file is empty")
		}
		if se, ok := err.(*json.SyntaxError); ok {
			line, col := lineCol(data, se.Offset)
			return errors.Errorf("%s: line %d column %d (char %d)", se, line, col, se.Offset)
		}
		if err == io.ErrUnexpectedEOF {
			return errors.New("unexpected end of JSON input")
		}
		return err
	}

	if tok, err := dec.Token(); err != io.EOF {
		offset := dec.InputOffset()
		line, col := lineCol(data, offset)
		if err != nil {
			return errors.Errorf("%s: line %d column %d (char %d)", err, line, col, offset)
		}
		return errors.Errorf("extra data %v after the JSON value: line %d column %d (char %d)", tok, line, col, offset)
	}

	return nil
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, errors.Wrapf(err, "unknown encoding %#v", label)
	}
	if enc == nil {
		return nil, errors.Errorf("unsupported encoding %#v", label)
	}
	return enc.NewDecoder().Reader(input), nil
}

// validateXML requires a well-formed document with a single root element.
func validateXML(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true
	dec.CharsetReader = charsetReader

	depth, roots := 0, 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				if roots++; roots > 1 {
					line, _ := dec.InputPos()
					return errors.Errorf("junk after document element at line %d", line)
				}
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				line, _ := dec.InputPos()
				return errors.Errorf("text outside the document element at line %d", line)
			}
		}
	}

	if roots == 0 {
		return errors.New("no element found")
	}
	return nil
}

// validateYAML accepts any number of documents, including none.
func validateYAML(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var doc yaml.Node
		if err := dec.Decode(&doc); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func validateTOML(data []byte) error {
	var v map[string]interface{}
	_, err := toml.Decode(string(data), &v)
	return err
}

func validateShell(path string, data []byte) error {
	_, err := syntax.NewParser().Parse(bytes.NewReader(data), path)
	return err
}

// validateUTF8 reports the first byte that is not part of a valid UTF-8
// sequence.
func validateUTF8(data []byte) error {
	if utf8.Valid(data) {
		return nil
	}
	for off := 0; off < len(data); {
		r, size := utf8.DecodeRune(data[off:])
		if r == utf8.RuneError && size <= 1 {
			line, col := lineCol(data, int64(off))
			return errors.Errorf("invalid UTF-8 byte 0x%02x at line %d column %d (offset %d)",
				data[off], line, col, off)
		}
		off += size
	}
	return nil
}

func describeSchemaErrors(errs []string) error {
	if len(errs) == 1 {
		return errors.Errorf("does not match schema: %s", errs[0])
	}
	return errors.Errorf("does not match schema: %s", strings.Join(errs, "; "))
}
