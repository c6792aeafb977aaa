package checks

import (
	"testing"
)

func names(list []Check) (out []string) {
	for _, c := range list {
		out = append(out, c.Name())
	}
	return out
}

func TestRegistrySelect(t *testing.T) {
	f := NewFixture(t)
	defer f.Close()

	r := NewRegistry().MustRegister(
		&scripted{name: "branch"},
		&scripted{name: "json"},
		&scripted{name: "xml"},
	)

	f.Equal([]string{"branch", "json", "xml"}, r.Names())
	f.Equal([]string{"branch", "json", "xml"}, names(r.All()))

	list, err := r.Select()
	f.NoError(err)
	f.Equal([]string{"branch", "json", "xml"}, names(list))

	// registration order wins over the order asked for
	list, err = r.Select("xml", "branch", "xml")
	f.NoError(err)
	f.Equal([]string{"branch", "xml"}, names(list))

	_, err = r.Select("json", "clang-format")
	f.Error(err)
	uce, ok := err.(*UnknownCheckError)
	f.True(ok)
	f.Equal("clang-format", uce.Name)
	f.Contains(err.Error(), "branch, json, xml")

	c, ok := r.Get("json")
	f.True(ok)
	f.Equal("json", c.Name())
	_, ok = r.Get("nope")
	f.False(ok)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	f := NewFixture(t)
	defer f.Close()

	r := NewRegistry()
	f.NoError(r.Register(&scripted{name: "a"}))
	f.Error(r.Register(&scripted{name: "a"}))
	f.Error(r.Register(&scripted{name: ""}))
	f.Panics(func() { r.MustRegister(&scripted{name: "a"}) })

	// the names slice handed out is a copy
	n := r.Names()
	n[0] = "changed"
	f.Equal([]string{"a"}, r.Names())
}

func TestEmptyRegistry(t *testing.T) {
	f := NewFixture(t)
	defer f.Close()

	list, err := NewRegistry().Select()
	f.NoError(err)
	f.Empty(list)
}
