// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifier_Classify(t *testing.T) {
	c := New()
	ctx := context.Background()

	tests := []struct {
		name      string
		message   string
		intent    Intent
		aggregate Aggregate
		subject   string
		lookup    bool
	}{
		// Aggregate queries
		{name: "customer count", message: "How many customers do I have?", intent: AggregateDataQuery, aggregate: CustomerCount},
		{name: "count shouting", message: "HOW MANY CUSTOMERS???", intent: AggregateDataQuery, aggregate: CustomerCount},
		{name: "count punctuation", message: "total...customers!", intent: AggregateDataQuery, aggregate: CustomerCount},
		{name: "discounts", message: "Which customers with discount are there?", intent: AggregateDataQuery, aggregate: DiscountCustomers},
		{name: "earned discount", message: "Who has earned a discount?", intent: AggregateDataQuery, aggregate: DiscountCustomers},
		{name: "conversion", message: "What's the referral conversion rate?", intent: AggregateDataQuery, aggregate: SuccessRates},
		{name: "percentage of customers", message: "percentage of customers with a discount", intent: AggregateDataQuery, aggregate: DiscountCustomers},
		{name: "business overview", message: "Give me a business overview", intent: AggregateDataQuery, aggregate: GeneralStats},
		{name: "top referrers", message: "Who are my top referrers?", intent: AggregateDataQuery, aggregate: TopReferrers},
		{name: "most referrals", message: "who has the most referrals", intent: AggregateDataQuery, aggregate: TopReferrers},
		{name: "recent", message: "Show me recent customers", intent: AggregateDataQuery, aggregate: RecentCustomers},
		{name: "referral codes", message: "How are the referral codes doing?", intent: AggregateDataQuery, aggregate: ReferralStatus},
		{name: "success rate", message: "What's my success rate?", intent: AggregateDataQuery, aggregate: SuccessRates},
		{name: "stats", message: "Show me general statistics", intent: AggregateDataQuery, aggregate: GeneralStats},
		{name: "aggregate beats customer", message: "Tell me about customer count", intent: AggregateDataQuery, aggregate: CustomerCount},

		// Customer-specific queries
		{name: "tell me about", message: "Tell me about customer Sarah", intent: CustomerSpecificQuery, subject: "Sarah", lookup: true},
		{name: "lower case", message: "tell me about customer sarah", intent: CustomerSpecificQuery, subject: "Sarah", lookup: true},
		{name: "find named", message: "Find customer named Sarah Lee, please", intent: CustomerSpecificQuery, subject: "Sarah Lee", lookup: true},
		{name: "who is", message: "who is tom?", intent: CustomerSpecificQuery, subject: "Tom", lookup: true},
		{name: "possessive", message: "Show details for Sarah's account", intent: CustomerSpecificQuery, subject: "Sarah", lookup: true},
		{name: "id token", message: "status of SA4567", intent: CustomerSpecificQuery, subject: "SA4567", lookup: true},
		{name: "id advice", message: "Should sa4567 get a free sample?", intent: CustomerSpecificQuery, subject: "SA4567"},
		{name: "named advice", message: "Does customer Sarah Lee deserve a thank-you gift?", intent: CustomerSpecificQuery, subject: "Sarah Lee"},
		{name: "named advice lower case", message: "does customer sarah lee deserve a thank-you gift?", intent: CustomerSpecificQuery, subject: "Sarah Lee"},
		{name: "named advice shouting", message: "DOES CUSTOMER SARAH LEE DESERVE A GIFT", intent: CustomerSpecificQuery, subject: "SARAH LEE"},
		{name: "short advice lower case", message: "should customer anna get a sample?", intent: CustomerSpecificQuery, subject: "Anna"},
		{name: "possessive", message: "What is customer Sarah's referral count?", intent: CustomerSpecificQuery, subject: "Sarah"},
		{name: "possessive lower case", message: "what is customer sarah's referral count?", intent: CustomerSpecificQuery, subject: "Sarah"},
		{name: "possessive surname", message: "Tell me about customer Sarah Lee's progress", intent: CustomerSpecificQuery, subject: "Sarah Lee", lookup: true},
		{name: "curly possessive", message: "How is customer Sarah’s progress?", intent: CustomerSpecificQuery, subject: "Sarah", lookup: true},
		{name: "suffixed id", message: "status of sa4567b", intent: CustomerSpecificQuery, subject: "SA4567B", lookup: true},

		// Open conversation
		{name: "tea advice", message: "What tea is good for winter?", intent: OpenConversation},
		{name: "greeting", message: "Hello!", intent: OpenConversation},
		{name: "customer service", message: "How do I improve customer service?", intent: OpenConversation},
		{name: "capitalised service", message: "Any tips on Customer Service?", intent: OpenConversation},
		{name: "lower case service", message: "any tips on customer service?", intent: OpenConversation},
		{name: "customer feedback", message: "how should I collect customer feedback?", intent: OpenConversation},
		{name: "tea discounts", message: "What discounts do you offer on green tea?", intent: OpenConversation},
		{name: "tea percentage", message: "What percentage of caffeine is in matcha?", intent: OpenConversation},
		{name: "tea summary", message: "Give me a summary of oolong flavours", intent: OpenConversation},
		{name: "brewing overview", message: "An overview of brewing temperatures, please", intent: OpenConversation},
		{name: "trigger without subject", message: "Find customer", intent: OpenConversation},
		{name: "tea topic", message: "Tell me about oolong tea", intent: OpenConversation},
		{name: "referral code is not an id", message: "is SA4567R1 a good gift", intent: OpenConversation},
		{name: "empty", message: "   ", intent: OpenConversation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(ctx, tt.message)
			assert.Equal(t, tt.intent, got.Intent, "intent")
			assert.Equal(t, tt.aggregate, got.Aggregate, "aggregate")
			assert.Equal(t, tt.subject, got.Subject(), "subject")
			if tt.intent == CustomerSpecificQuery {
				assert.Equal(t, tt.lookup, got.Lookup, "lookup")
			}
		})
	}
}

func TestIntentString(t *testing.T) {
	assert.Equal(t, "aggregate", AggregateDataQuery.String())
	assert.Equal(t, "customer", CustomerSpecificQuery.String())
	assert.Equal(t, "conversation", OpenConversation.String())
	assert.Equal(t, "top_referrers", TopReferrers.String())
	assert.Equal(t, "none", AggregateNone.String())
}

func TestClassify_Stateless(t *testing.T) {
	c := New()
	ctx := context.Background()
	// Same input, same answer; no state carried between calls.
	first := c.Classify(ctx, "Tell me about customer Sarah")
	c.Classify(ctx, "How many customers?")
	assert.Equal(t, first, c.Classify(ctx, "Tell me about customer Sarah"))
}
