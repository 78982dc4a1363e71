package rabbitmq

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type ackCall struct {
	tag     uint64
	ack     bool
	requeue bool
}

type fakeAcknowledger struct {
	calls []ackCall
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.calls = append(f.calls, ackCall{tag: tag, ack: true})
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.calls = append(f.calls, ackCall{tag: tag, requeue: requeue})
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func TestSettle(t *testing.T) {
	retry := fmt.Errorf("%w: reply channel closed", ErrRetry)

	tests := []struct {
		name        string
		redelivered bool
		err         error
		want        ackCall
	}{
		{name: "success acks", err: nil, want: ackCall{tag: 7, ack: true}},
		{name: "retry requeues once", err: retry, want: ackCall{tag: 7, requeue: true}},
		{name: "retry after redelivery drops", redelivered: true, err: retry, want: ackCall{tag: 7}},
		{name: "other errors drop", err: errors.New("bad json"), want: ackCall{tag: 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeAcknowledger{}
			settle(f, 7, tt.redelivered, tt.err)
			assert.Equal(t, []ackCall{tt.want}, f.calls)
		})
	}
}
