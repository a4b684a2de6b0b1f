// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieve

import (
	"strings"

	"golang.org/x/net/html"
)

// cleanTitle removes inline markup (<i>, <sup>, entities) that Europe PMC
// leaves in titles and collapses whitespace.
func cleanTitle(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}
