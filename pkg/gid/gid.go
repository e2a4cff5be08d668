// Package gid validates Shopify global resource identifiers
// (gid://shopify/<Type>/<numeric id>). Admin mutations accept GIDs only in
// this exact shape, scoped to the resource type the operation expects.
package gid

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	TypeCustomer  = "Customer"
	TypeMetafield = "Metafield"
)

var pattern = regexp.MustCompile(`^gid://shopify/([A-Za-z]+)/(\d+)$`)

// Parse validates raw against the expected resource type and returns the
// canonical GID string. The empty string return signals an invalid GID.
func Parse(raw, resourceType string) (string, bool) {
	s := strings.TrimSpace(raw)
	m := pattern.FindStringSubmatch(s)
	if m == nil || m[1] != resourceType {
		return "", false
	}
	return s, true
}

// Customer validates a Customer GID.
func Customer(raw string) (string, bool) { return Parse(raw, TypeCustomer) }

// Metafield validates a Metafield GID.
func Metafield(raw string) (string, bool) { return Parse(raw, TypeMetafield) }

// Format builds a GID for the given resource type and numeric id.
func Format(resourceType string, id uint64) string {
	return fmt.Sprintf("gid://shopify/%s/%d", resourceType, id)
}
