package recipes

import (
	"errors"
	"slices"
	"testing"

	"github.com/goplus/cppkg/recipe"
)

func TestDefault(t *testing.T) {
	r := Default()
	if got := r.Names(); !slices.Equal(got, []string{"cppcommon", "cppserver"}) {
		t.Fatalf("Names = %v", got)
	}

	server, err := r.Lookup("cppserver", recipe.Local)
	if err != nil {
		t.Fatal(err)
	}
	if server.Version != "1.0.0" || server.Variant != recipe.Local || server.Build.Module {
		t.Errorf("cppserver = %s %v module=%v", server.Ref(), server.Variant, server.Build.Module)
	}
	common, err := r.Lookup("cppcommon/1.0.0.0", recipe.Upstream)
	if err != nil {
		t.Fatal(err)
	}
	if !common.Build.Module || len(common.TestRequires) != 0 {
		t.Errorf("cppcommon policy = %+v", common.Build)
	}
	for _, d := range common.Options {
		if d.Name == recipe.OptTests {
			t.Error("cppcommon declares a tests option")
		}
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	r := Default()
	a, _ := r.Lookup("cppserver", recipe.Upstream)
	a.Requires[0].Version = "0.0.0"
	a.CompilerPolicy["gcc"] = "99"
	b, _ := r.Lookup("cppserver", recipe.Upstream)
	if b.Requires[0].Version != "1.17.0" || b.CompilerPolicy["gcc"] != "7" {
		t.Error("Lookup shares state between callers")
	}
}

func TestLookupLatest(t *testing.T) {
	r := New()
	for _, v := range []string{"1.0.0.0", "1.0.0.10", "1.0.0.9"} {
		if err := r.Register(&recipe.Recipe{Name: "lib", Version: v}); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.Register(&recipe.Recipe{Name: "lib", Version: "1.0.0.9"}); err == nil {
		t.Error("duplicate registration succeeded")
	}
	if got := r.Versions("lib"); !slices.Equal(got, []string{"1.0.0.0", "1.0.0.9", "1.0.0.10"}) {
		t.Errorf("Versions = %v", got)
	}
	rcp, err := r.Lookup("lib", recipe.Upstream)
	if err != nil || rcp.Version != "1.0.0.10" {
		t.Errorf("Lookup latest = %v, %v", rcp, err)
	}
}

func TestLookupErrors(t *testing.T) {
	r := Default()
	for _, ref := range []string{"nope", "cppserver/9.9.9"} {
		if _, err := r.Lookup(ref, recipe.Upstream); !errors.Is(err, ErrNotFound) {
			t.Errorf("Lookup(%q) err = %v, want ErrNotFound", ref, err)
		}
	}
	for _, ref := range []string{"", "/1.0", "a/b/c"} {
		if _, _, err := ParseRef(ref); err == nil {
			t.Errorf("ParseRef(%q) succeeded", ref)
		}
	}
}
