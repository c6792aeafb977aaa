package validation

import (
	"bytes"
	"regexp"
	"strings"
	"text/template"

	"github.com/dustin/go-humanize"
	"github.com/gobwas/glob"
	log "github.com/sirupsen/logrus"

	"github.com/go-playground/validator/v10"
)

var ValidationDebugErrTemplate = template.Must(
	template.New("validation-debug").Parse(`
Namespace:       {{.Namespace}}
Field:           {{.Field}}
StructNamespace: {{.StructNamespace}}
StructField:     {{.StructField}}
Tag:             {{.Tag}}
ActualTag:       {{.ActualTag}}
Kind:            {{.Kind}}
Type:            {{.Type}}
Value:           {{.Value|printf "%#v"}}
Param:           {{.Param}}
`))

// based on the default Error message, but includes the value in the message
var ValidationHumanTemplate = func() *template.Template {
	s := "Key {{.Namespace}} failed Error:Field " +
		"validation for '{{.Field}}' failed on the {{.Tag}} tag " +
		"for value {{.Value|printf \"%#v\"}}"
	return template.Must(template.New("validation-err").Parse(s))
}()

var oidRE = regexp.MustCompile(`^([0-9a-f]{40}|[0-9a-f]{64})$`)

// validates a full hex object name, sha1 or sha256
func isObjectID(fl validator.FieldLevel) bool {
	return oidRE.MatchString(fl.Field().String())
}

func isGlob(fl validator.FieldLevel) bool {
	_, err := glob.Compile(fl.Field().String(), '/')
	return err == nil
}

func isRegexp(fl validator.FieldLevel) bool {
	_, err := regexp.Compile(fl.Field().String())
	return err == nil
}

// "1.5 MiB", "200kB", "4096"
func isByteSize(fl validator.FieldLevel) bool {
	_, err := humanize.ParseBytes(fl.Field().String())
	return err == nil
}

var customValidations = map[string]validator.Func{
	"oid":      isObjectID,
	"glob":     isGlob,
	"regexp":   isRegexp,
	"bytesize": isByteSize,
}

// NewValidator returns a validator reading the "v" struct tag, with the
// tags of customValidations registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("v")
	for tag, fn := range customValidations {
		if err := v.RegisterValidation(tag, fn); err != nil {
			log.Panicf("[BUG] failed to register %#v validation: %#v", tag, err)
		}
	}
	return v
}

// formatValidationErr renders each field error of err with t, in the order
// the validator reported them. Errors that aren't validator.ValidationErrors
// give nil.
func formatValidationErr(err error, t *template.Template) (msgs []string) {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}

	var buf bytes.Buffer
	for _, e := range errs {
		if te := t.Execute(&buf, e); te != nil {
			log.Panicf("[BUG] failed to evaluate validation error template: %#v", te)
		}
		msgs = append(msgs, buf.String())
		buf.Reset()
	}

	return msgs
}

// if t is nil, use the ValidationHumanTemplate
func FormatValidationErrors(err error, t *template.Template) (errs []string) {
	if t == nil {
		t = ValidationHumanTemplate
	}
	return formatValidationErr(err, t)
}

// if t is nil use the ValidationDebugErrTemplate
func SprintValidationErrors(err error, t *template.Template) string {
	if t == nil {
		t = ValidationDebugErrTemplate
	}
	msgs := formatValidationErr(err, t)
	if msgs == nil {
		return ""
	}
	return strings.Join(msgs, "\n") + "\n"
}
