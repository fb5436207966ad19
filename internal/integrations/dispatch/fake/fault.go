package fake

import (
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Операции бэкенда, к которым применяется FaultPolicy и задержки.
const (
	OpFetchAll           = "fetch_all"
	OpFetchDetail        = "fetch_detail"
	OpCheckPin           = "check_pin"
	OpConfirmLoads       = "confirm_loads"
	OpRejectLoad         = "reject_load"
	OpConfirmPickup      = "confirm_pickup"
	OpCompleteDelivery   = "complete_delivery"
	OpSubmitReassignment = "submit_reassignment"
)

// FaultPolicy решает, упадёт ли очередной вызов. nil означает успешный вызов.
type FaultPolicy interface {
	Produce(op string) error
}

type NoFaults struct{}

func (NoFaults) Produce(string) error { return nil }

// FailOps детерминированно роняет перечисленные операции.
type FailOps map[string]error

func (f FailOps) Produce(op string) error {
	return f[op]
}

type Rand interface {
	Float64() float64
}

// RandomFaults роняет вызовы с заданной вероятностью (имитация нестабильной сети).
type RandomFaults struct {
	rate float64

	mu sync.Mutex
	r  Rand
}

func NewRandomFaults(rate float64, r Rand) *RandomFaults {
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RandomFaults{rate: rate, r: r}
}

func (f *RandomFaults) Produce(op string) error {
	if f.rate <= 0 {
		return nil
	}
	f.mu.Lock()
	v := f.r.Float64()
	f.mu.Unlock()
	if v < f.rate {
		return errors.Errorf("simulated network error (%s)", op)
	}
	return nil
}
