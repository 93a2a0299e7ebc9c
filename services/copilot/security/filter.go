// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package security sanitizes raw interview text before it reaches any
// downstream consumer.
//
// Two concerns are handled in one pass:
//
//   - Redaction: sensitive spans (emails, phone numbers, SSNs, card
//     numbers, API keys) are replaced with typed placeholders. Only span
//     metadata is recorded; the raw text is never retained.
//   - Prompt injection: heuristically-likely injection content is flagged.
//     Flagged text must never reach the language-model context; for
//     summaries it is replaced with FilteredContentMarker.
//
// The heuristics are a marker table, not a classifier. False positives
// cost one skipped suggestion; false negatives are bounded by the model
// prompt's own guardrails.
package security

import (
	"regexp"
	"sort"

	"github.com/samhanoun/finalround-clone-sub001/services/copilot/datatypes"
)

// FilteredContentMarker replaces injection-flagged text in summaries
// instead of forwarding it verbatim.
const FilteredContentMarker = "[content filtered]"

// Result is the outcome of sanitizing one piece of text.
type Result struct {
	// Sanitized is the text with every sensitive span replaced by its
	// typed placeholder. Downstream consumers must use this form only.
	Sanitized string

	// Redactions records the replaced spans, ordered by position.
	Redactions []datatypes.Redaction

	// HasPromptInjection is true when the text matches an injection marker.
	HasPromptInjection bool
}

// =============================================================================
// Rule Tables
// =============================================================================

type redactionRule struct {
	kind        string
	placeholder string
	pattern     *regexp.Regexp
}

// Order matters: earlier rules win on overlapping spans.
var redactionRules = []redactionRule{
	{
		kind:        "email",
		placeholder: "[email redacted]",
		pattern:     regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`),
	},
	{
		kind:        "ssn",
		placeholder: "[ssn redacted]",
		pattern:     regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	},
	{
		kind:        "card_number",
		placeholder: "[card redacted]",
		pattern:     regexp.MustCompile(`\b(?:\d[ \-]?){13,16}\b`),
	},
	{
		kind:        "phone",
		placeholder: "[phone redacted]",
		pattern:     regexp.MustCompile(`(\+?\d{1,3}[ .\-]?)?\(?\d{3}\)?[ .\-]\d{3}[ .\-]\d{4}\b`),
	},
	{
		kind:        "api_key",
		placeholder: "[secret redacted]",
		pattern:     regexp.MustCompile(`\b(?:sk|pk|api|key|token|ghp|xox[bap])[_\-][A-Za-z0-9_\-]{16,}\b`),
	},
}

// injectionMarkers flag heuristically-likely prompt-injection content.
var injectionMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions|prompts|messages)`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|the\s+above)`),
	regexp.MustCompile(`(?i)forget\s+(everything|all\s+previous)`),
	regexp.MustCompile(`(?i)(reveal|print|show|repeat)\s+(your\s+)?(system\s+prompt|instructions)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|in)\b`),
	regexp.MustCompile(`(?i)new\s+instructions\s*:`),
	regexp.MustCompile(`(?i)\bdo\s+anything\s+now\b`),
	regexp.MustCompile(`(?i)\bjailbreak\b`),
	regexp.MustCompile(`(?i)</?\s*(system|assistant)\s*>`),
	regexp.MustCompile(`(?i)\[\s*(system|inst)\s*\]`),
	regexp.MustCompile(`(?i)act\s+as\s+(if\s+you\s+are\s+)?(the\s+)?(system|developer|admin)`),
}

// =============================================================================
// Sanitize
// =============================================================================

type span struct {
	start, end  int
	kind        string
	placeholder string
}

// Sanitize redacts sensitive spans and flags likely prompt injection.
//
// Redaction offsets refer to the original text. Overlapping matches are
// resolved in rule-table order, then by position.
func Sanitize(text string) Result {
	spans := collectSpans(text)

	var (
		sanitized  []byte
		redactions []datatypes.Redaction
		last       int
	)
	for _, sp := range spans {
		sanitized = append(sanitized, text[last:sp.start]...)
		sanitized = append(sanitized, sp.placeholder...)
		redactions = append(redactions, datatypes.Redaction{
			Type:  sp.kind,
			Start: sp.start,
			End:   sp.end,
		})
		last = sp.end
	}
	sanitized = append(sanitized, text[last:]...)

	return Result{
		Sanitized:          string(sanitized),
		Redactions:         redactions,
		HasPromptInjection: detectInjection(text),
	}
}

// collectSpans gathers non-overlapping redaction spans across all rules,
// sorted by start offset.
func collectSpans(text string) []span {
	var all []span
	for _, rule := range redactionRules {
		for _, loc := range rule.pattern.FindAllStringIndex(text, -1) {
			all = append(all, span{
				start:       loc[0],
				end:         loc[1],
				kind:        rule.kind,
				placeholder: rule.placeholder,
			})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].start != all[j].start {
			return all[i].start < all[j].start
		}
		return all[i].end > all[j].end
	})

	var kept []span
	lastEnd := -1
	for _, sp := range all {
		if sp.start < lastEnd {
			continue
		}
		kept = append(kept, sp)
		lastEnd = sp.end
	}
	return kept
}

func detectInjection(text string) bool {
	for _, marker := range injectionMarkers {
		if marker.MatchString(text) {
			return true
		}
	}
	return false
}
