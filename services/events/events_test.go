// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.FixedZone("ICT", 7*3600))
	ev := New(KindDiscountEarned, "SA4567", at)

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, KindDiscountEarned, ev.Kind)
	assert.Equal(t, time.UTC, ev.OccurredAt.Location())
	assert.True(t, ev.OccurredAt.Equal(at))
	assert.NotEqual(t, ev.ID, New(KindDiscountEarned, "SA4567", at).ID)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	ctx := context.Background()
	require.NoError(t, r.Publish(ctx, New(KindCustomerRegistered, "A", time.Now())))
	require.NoError(t, r.Publish(ctx, New(KindReferralRedeemed, "B", time.Now())))
	assert.Equal(t, []Kind{KindCustomerRegistered, KindReferralRedeemed}, r.Kinds())
	assert.Len(t, r.Events(), 2)

	r.Err = assert.AnError
	assert.ErrorIs(t, r.Publish(ctx, New(KindDiscountEarned, "A", time.Now())), assert.AnError)
	assert.Len(t, r.Events(), 2)
}

func TestObserve(t *testing.T) {
	var seen []Kind
	var errs []error
	rec := &Recorder{}
	p := Observe(rec, func(kind Kind, err error) {
		seen = append(seen, kind)
		errs = append(errs, err)
	})

	require.NoError(t, p.Publish(context.Background(), New(KindReferralRedeemed, "A", time.Now())))
	rec.Err = assert.AnError
	assert.Error(t, p.Publish(context.Background(), New(KindDiscountEarned, "A", time.Now())))

	assert.Equal(t, []Kind{KindReferralRedeemed, KindDiscountEarned}, seen)
	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], assert.AnError)
	assert.NoError(t, p.Close())
}

func TestPublishing(t *testing.T) {
	ev := New(KindReferralRedeemed, "SA4567", time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	ev.Code = "SA4567R1"
	ev.RedeemedBy = "TO1111"
	ev.ReferralCount = 1

	msg, err := publishing(ev)
	require.NoError(t, err)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, ev.ID, msg.MessageId)
	assert.Equal(t, "referral.redeemed", msg.Type)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, "SA4567R1", decoded["code"])
	assert.Equal(t, "TO1111", decoded["redeemed_by"])
	assert.EqualValues(t, 1, decoded["referral_count"])
}

func TestRabbitMQ_ClosedPublisher(t *testing.T) {
	r := &RabbitMQ{exchange: DefaultExchange}
	assert.NoError(t, r.Close())
	assert.Error(t, r.Publish(context.Background(), New(KindCustomerRegistered, "A", time.Now())))
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), Event{}))
	assert.NoError(t, p.Close())
}
