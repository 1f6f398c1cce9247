package frontend

import (
	"reflect"
	"strings"
	"testing"
)

func TestMatchLineMarker(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{`# 12 "foo.c" 1`, []string{"12", "foo.c"}},
		{`#line 3 "inc/a.h"`, []string{"3", "inc/a.h"}},
		{`# 1 "<built-in>"`, []string{"1", "<built-in>"}},
		{`#include <stdio.h>`, nil},
		{`#define X 1`, nil},
	}
	for _, tt := range tests {
		if got := matchLineMarker(tt.line); !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("matchLineMarker(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestMatchInclude(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{`#include <stdio.h>`, []string{"<", "stdio.h"}},
		{`  #  include "local.h"`, []string{`"`, "local.h"}},
		{`#include<sys/types.h>`, []string{"<", "sys/types.h"}},
		{`#import <x.h>`, nil},
	}
	for _, tt := range tests {
		if got := matchInclude(tt.line); !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("matchInclude(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestScanRegions(t *testing.T) {
	src := "# 1 \"main.c\"\nint a;\n# 1 \"h.h\" 1\nint b;\n# 3 \"main.c\" 2\nint c;\n"
	r := scanRegions([]byte(src))
	if r.all || r.main != "main.c" {
		t.Fatalf("unexpected regions %+v", r)
	}
	for decl, want := range map[string]bool{"int a;": true, "int b;": false, "int c;": true} {
		off := strings.Index(src, decl)
		if got := r.inMain(off); got != want {
			t.Fatalf("inMain(%q) = %v, want %v", decl, got, want)
		}
	}

	plain := scanRegions([]byte("int a;\n"))
	if !plain.all || !plain.inMain(3) {
		t.Fatalf("source without linemarkers must be all main file")
	}
}
