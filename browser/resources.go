// CLAUDE:SUMMARY Blocks configured resource types (images, fonts, media, stylesheets) on audited pages.
package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resourceAliases maps CDP resource types to configuration names.
var resourceAliases = map[string]string{
	"image":      "images",
	"font":       "fonts",
	"media":      "media",
	"stylesheet": "stylesheets",
}

// applyResourceBlocking intercepts requests of the page and fails those
// whose resource type is listed. Documents and scripts are never blocked:
// the audit needs them. The returned router must be stopped on close.
func applyResourceBlocking(page *rod.Page, types []string) (*rod.HijackRouter, error) {
	blockSet := blockSetOf(types)
	if len(blockSet) == 0 {
		return nil, nil
	}

	router := page.HijackRequests()
	err := router.Add("*", "", func(ctx *rod.Hijack) {
		if shouldBlock(blockSet, string(ctx.Request.Type())) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		return nil, err
	}

	go router.Run()
	return router, nil
}

func blockSetOf(types []string) map[string]bool {
	set := make(map[string]bool, len(types))
	for _, t := range types {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || t == "document" || t == "script" {
			continue
		}
		set[t] = true
	}
	return set
}

func shouldBlock(blockSet map[string]bool, resType string) bool {
	lower := strings.ToLower(resType)
	if alias, ok := resourceAliases[lower]; ok && blockSet[alias] {
		return true
	}
	return blockSet[lower]
}
