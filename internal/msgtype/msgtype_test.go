// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package msgtype

import "testing"

func TestParseAndString(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"any", false},
		{"mime:text/plain", false},
		{"mime:text/*", false},
		{"custom:frame", false},
		{"mime:bad", true},
		{"custom:", true},
		{"bogus", true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if err == nil && got.String() != tt.in {
			t.Errorf("Parse(%q).String() = %q", tt.in, got.String())
		}
	}
}

func TestMatches(t *testing.T) {
	any := MustParse("any")
	mimeWild := MustParse("mime:text/*")
	mimeExact := MustParse("mime:text/plain")
	mimeOther := MustParse("mime:text/html")
	mimeDifferentTop := MustParse("mime:audio/plain")
	customX := MustParse("custom:x")
	customY := MustParse("custom:y")

	tests := []struct {
		name     string
		accept   Type
		produced Type
		want     bool
	}{
		{"any accepts mime", any, mimeExact, true},
		{"any accepts custom", any, customX, true},
		{"wildcard accepts exact subtype", mimeWild, mimeExact, true},
		{"wildcard accepts other subtype, same top-level", mimeWild, mimeOther, true},
		{"wildcard rejects different top-level", mimeWild, mimeDifferentTop, false},
		{"exact mime matches exact", mimeExact, mimeExact, true},
		{"exact mime rejects other subtype", mimeExact, mimeOther, false},
		{"custom matches exact name only", customX, customX, true},
		{"custom rejects different name", customX, customY, false},
		{"custom does not accept mime", customX, mimeExact, false},
		{"mime does not accept custom", mimeExact, customX, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.accept.Matches(tt.produced); got != tt.want {
				t.Errorf("%s.Matches(%s) = %v, want %v", tt.accept, tt.produced, got, tt.want)
			}
		})
	}
}

func TestAnyAccepts(t *testing.T) {
	accepted := []Type{MustParse("custom:a"), MustParse("mime:text/*")}
	if !AnyAccepts(accepted, MustParse("mime:text/html")) {
		t.Error("expected mime:text/html to be accepted via the wildcard entry")
	}
	if AnyAccepts(accepted, MustParse("custom:b")) {
		t.Error("did not expect custom:b to be accepted")
	}
}
