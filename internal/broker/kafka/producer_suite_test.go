package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/pukhraj-kanwal/Dispatch-hub/internal/broker/messages"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type writerMock struct {
	mock.Mock
}

func (m *writerMock) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

type ProducerSuite struct {
	suite.Suite
	wm *writerMock
	p  *Producer
}

func (s *ProducerSuite) SetupTest() {
	s.wm = &writerMock{}
	s.p = newProducerWithWriter(s.wm)
}

func (s *ProducerSuite) TestPublish_LoadEvent() {
	ev := messages.LoadEvent{
		EventID:    "e-1",
		Kind:       messages.LoadEventConfirmed,
		LoadID:     "DR-4586",
		FromStatus: "Unconfirmed",
		ToStatus:   "Confirmed",
		At:         time.Now().UTC(),
	}
	b, err := json.Marshal(ev)
	s.Require().NoError(err)

	s.wm.
		On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 || msgs[0].Topic != "load.events" || string(msgs[0].Key) != "DR-4586" {
				return false
			}
			var got messages.LoadEvent
			return json.Unmarshal(msgs[0].Value, &got) == nil && got.Kind == messages.LoadEventConfirmed
		})).
		Return(nil).
		Once()

	s.Require().NoError(s.p.Publish(context.Background(), "load.events", []byte(ev.LoadID), b))
	s.wm.AssertExpectations(s.T())
}

func (s *ProducerSuite) TestPublish_ErrorWrapped() {
	want := errors.New("boom")
	s.wm.On("WriteMessages", mock.Anything, mock.Anything).Return(want).Once()

	err := s.p.Publish(context.Background(), "load.events", []byte("DR-1"), []byte("v"))
	s.Require().ErrorIs(err, want)
	s.Require().Contains(err.Error(), "kafka publish")
	s.wm.AssertExpectations(s.T())
}

func (s *ProducerSuite) TestClose_WriterWithoutClose() {
	s.Require().NoError(s.p.Close())
}

func TestProducerSuite(t *testing.T) {
	suite.Run(t, new(ProducerSuite))
}
