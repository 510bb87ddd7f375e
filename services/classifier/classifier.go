// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package classifier decides how a chat message should be answered.
//
// Every message maps to exactly one Intent:
//
//	AggregateDataQuery     counts, lists and rankings over all customers
//	CustomerSpecificQuery  a question about one identifiable customer
//	OpenConversation       everything else (tea advice, small talk, ...)
//
// Classification is keyword and regex based. It never touches the store or
// the conversational backend. When several intents match, Aggregate wins
// over CustomerSpecific, which wins over OpenConversation. A customer
// question with no recognisable customer in it falls through to
// OpenConversation.
package classifier

import (
	"context"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Intent is the answer path for a message.
type Intent int

const (
	OpenConversation Intent = iota
	AggregateDataQuery
	CustomerSpecificQuery
)

// String returns the label used in logs, metrics and API responses.
func (i Intent) String() string {
	switch i {
	case AggregateDataQuery:
		return "aggregate"
	case CustomerSpecificQuery:
		return "customer"
	default:
		return "conversation"
	}
}

// Aggregate is the kind of population-wide answer requested.
type Aggregate int

const (
	AggregateNone Aggregate = iota
	CustomerCount
	DiscountCustomers
	TopReferrers
	RecentCustomers
	ReferralStatus
	SuccessRates
	GeneralStats
)

func (a Aggregate) String() string {
	switch a {
	case CustomerCount:
		return "customer_count"
	case DiscountCustomers:
		return "discount_customers"
	case TopReferrers:
		return "top_referrers"
	case RecentCustomers:
		return "recent_customers"
	case ReferralStatus:
		return "referral_status"
	case SuccessRates:
		return "success_rates"
	case GeneralStats:
		return "general_stats"
	default:
		return "none"
	}
}

// Classification is the result of Classify.
type Classification struct {
	Intent Intent

	// Aggregate is set for AggregateDataQuery.
	Aggregate Aggregate

	// SubjectID is a customer id found in the message, upper-cased.
	SubjectID string

	// Names are candidate customer-name words, title-cased, in message
	// order. Set for CustomerSpecificQuery when SubjectID is empty.
	Names []string

	// Lookup is true when the message is a plain lookup command ("find",
	// "show", "tell me about", ...) rather than a question needing advice.
	Lookup bool
}

// Subject returns the id or the joined name candidates.
func (c Classification) Subject() string {
	if c.SubjectID != "" {
		return c.SubjectID
	}
	return strings.Join(c.Names, " ")
}

type aggregateRule struct {
	kind    Aggregate
	pattern *regexp.Regexp
}

// aggregateRules are tried in order; the first match wins.
var aggregateRules = []aggregateRule{
	{CustomerCount, words(
		`how many customers`,
		`total (number of )?customers`,
		`number of customers`,
		`customer count`,
		`count (my |the )?customers`,
	)},
	{DiscountCustomers, words(
		`customers? with (a |the )?discounts?`,
		`discount (customers?|list|earners?)`,
		`customers? (who|that) (has|have|earned|got) (a |the |their )?discounts?`,
		`(earned|earning|eligible for|qualified for) (a |the |their )?(referral )?discounts?`,
		`who (has|have|got) (a |the )?discounts?`,
	)},
	{TopReferrers, words(
		`(top|best|leading) referrers?`,
		`most referrals?`,
	)},
	{RecentCustomers, words(
		`(recent|recently|newest|latest) (customers?|registrations?|sign ?ups?)`,
		`new customers?`,
		`registered recently`,
		`who joined`,
	)},
	{ReferralStatus, words(
		`referral codes?`,
		`codes used`,
		`referral usage`,
	)},
	{SuccessRates, words(
		`success rates?`,
		`(referral|code) conversions?( rates?)?`,
		`conversion rates? (of|for) (my |the )?(referrals?|codes?|customers?)`,
		`percentage of (my |the )?(customers?|referrals?|codes?)`,
	)},
	{GeneralStats, words(
		`statistics`,
		`stats`,
		`(business|customer|referral|shop) (overview|summary)`,
		`(overview|summary) of (the |my )?(business|customers?|referrals?|shop)`,
	)},
}

var (
	// customerTrigger marks a message as being about one customer.
	customerTrigger = words(
		`(find|search|show|lookup|look up|get)( me)?( for)?( the| a)? customers?`,
		`customers? (named|called)`,
		`tell me about`,
		`who is`,
		`(info|information|details|status|progress|profile|standing|referrals) (for|of|on|about)`,
	)

	// lookupCommand marks a customer question as a plain lookup.
	lookupCommand = words(
		`find`, `search`, `show`, `lookup`, `look up`, `tell me about`, `who is`,
		`details`, `info`, `information`, `status`, `progress`, `profile`,
	)

	// idToken matches a customer id such as SA4567 anywhere in a message.
	idToken = regexp.MustCompile(`(?i)\b([a-z]{2}\d{4}[a-qs-z]?)\b`)

	// namedCustomer matches "customer Sarah" in any case. Stop words keep
	// "customer service" a conversation.
	namedCustomer = regexp.MustCompile(`(?i)\bcustomers?\s+(?:(?:named|called)\s+)?(\p{L}[\p{L}'’-]*)`)
)

// maxNameWords bounds how many words after the first are taken as a name.
const maxNameWords = 3

// words compiles alternatives into one case-insensitive, word-bounded regex.
func words(alternatives ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(` + strings.Join(alternatives, "|") + `)\b`)
}

// stopWords are dropped when extracting customer names.
var stopWords = map[string]bool{}

func init() {
	for _, w := range strings.Fields(`
		who is what where when how why which the an and or but in on at to for of with from by
		customer customers named called about tell me show find search get lookup look up
		my your his her their our its this that these those it he she they we you
		please can could would should will do does did has have had is are was were be been
		any anything some all give list know info information details status progress profile
		standing referral referrals code codes discount discounts thank thanks hello hi hey
		tea teas green black white oolong herbal matcha chai earl grey jasmine brew brewing
		good best new recent today winter summer spring autumn fall
		service support loyalty retention satisfaction experience account
		care feedback relations base reviews review complaints complaint questions question
		tips ideas engagement appreciation journey needs data records names list count
		deserve deserves get gets need earn earns earned qualify qualifies like likes want wants
		buy buys bought order ordered prefer prefers usually visit visits come came
	`) {
		stopWords[w] = true
	}
}

// Classifier maps messages to intents. The zero value is not usable; call
// New.
//
// Thread Safety: safe for concurrent use.
type Classifier struct {
	tracer trace.Tracer
}

// New creates a Classifier.
func New() *Classifier {
	return &Classifier{tracer: otel.Tracer("teadesk/classifier")}
}

// Classify returns the intent of message.
//
// # Description
//
// The message is normalised to lower-case words first, so case and
// punctuation do not matter. Aggregate rules are tried first, then the
// customer triggers. Customer names are extracted from the original text
// with stop words removed.
//
// # Examples
//
//	"How many customers do I have?"  → AggregateDataQuery / customer_count
//	"Tell me about customer Sarah"   → CustomerSpecificQuery, Names [Sarah], Lookup
//	"What tea is good for winter?"   → OpenConversation
func (c *Classifier) Classify(ctx context.Context, message string) Classification {
	_, span := c.tracer.Start(ctx, "classifier.Classify",
		trace.WithAttributes(attribute.Int("message_length", len(message))))
	defer span.End()

	result := classify(message)
	span.SetAttributes(
		attribute.String("intent", result.Intent.String()),
		attribute.String("aggregate", result.Aggregate.String()),
		attribute.Bool("lookup", result.Lookup),
	)
	return result
}

func classify(message string) Classification {
	norm := normalize(message)
	if norm == "" {
		return Classification{Intent: OpenConversation}
	}

	for _, rule := range aggregateRules {
		if rule.pattern.MatchString(norm) {
			return Classification{Intent: AggregateDataQuery, Aggregate: rule.kind}
		}
	}

	lookup := lookupCommand.MatchString(norm)

	if m := idToken.FindStringSubmatch(message); m != nil {
		return Classification{
			Intent:    CustomerSpecificQuery,
			SubjectID: strings.ToUpper(m[1]),
			Lookup:    lookup,
		}
	}

	if m := namedCustomer.FindStringSubmatchIndex(message); m != nil {
		first, possessive := stripPossessive(message[m[2]:m[3]])
		if isNameWord(first) {
			names := []string{titleWord(first)}
			if !possessive {
				names = append(names, nameRun(message[m[3]:])...)
			}
			return Classification{Intent: CustomerSpecificQuery, Names: names, Lookup: lookup}
		}
	}

	if customerTrigger.MatchString(norm) {
		if names := extractNames(message); len(names) > 0 {
			return Classification{Intent: CustomerSpecificQuery, Names: names, Lookup: lookup}
		}
	}

	return Classification{Intent: OpenConversation}
}

// normalize lower-cases message and replaces every non-alphanumeric rune
// with a single space.
func normalize(message string) string {
	fields := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}

// extractNames returns the words of message that could be part of a
// customer name.
func extractNames(message string) []string {
	var names []string
	for _, w := range strings.FieldsFunc(message, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\'' && r != '’'
	}) {
		w, _ = stripPossessive(w)
		if !isNameWord(w) {
			continue
		}
		names = append(names, titleWord(strings.ToLower(w)))
	}
	return names
}

// nameRun returns the name words that directly follow a matched first name
// ("Lee" in " Lee deserve a gift"). It stops at punctuation, a stop word,
// after a possessive ("Lee's") or after maxNameWords words.
func nameRun(text string) []string {
	var run []string
	for _, w := range strings.Fields(text) {
		trimmed := strings.TrimRightFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && r != '\'' && r != '’'
		})
		word, possessive := stripPossessive(trimmed)
		if !isNameWord(word) {
			break
		}
		run = append(run, titleWord(word))
		if possessive || trimmed != w || len(run) == maxNameWords {
			break
		}
	}
	return run
}

// stripPossessive removes a trailing 's (or a bare trailing apostrophe) and
// reports whether there was one.
func stripPossessive(w string) (string, bool) {
	for _, suffix := range []string{"'s", "'S", "’s", "’S", "'", "’"} {
		if strings.HasSuffix(w, suffix) {
			return strings.TrimSuffix(w, suffix), true
		}
	}
	return w, false
}

// isNameWord reports whether w can be part of a customer name.
func isNameWord(w string) bool {
	if utf8.RuneCountInString(w) < 2 || stopWords[strings.ToLower(w)] {
		return false
	}
	for _, r := range w {
		if !unicode.IsLetter(r) && r != '-' && r != '\'' && r != '’' {
			return false
		}
	}
	return true
}

// titleWord upper-cases the first letter of an all lower-case word and
// leaves mixed-case words ("McKay") alone.
func titleWord(w string) string {
	if w != strings.ToLower(w) {
		return w
	}
	r, size := utf8.DecodeRuneInString(w)
	return string(unicode.ToUpper(r)) + w[size:]
}
