package relay

import (
	"periph.io/x/conn/v3/gpio"
)

type MockOutput struct {
	OutFunc func(l gpio.Level) error
	Level   gpio.Level
	Writes  int
}

func (m *MockOutput) Out(l gpio.Level) error {
	m.Writes++
	if m.OutFunc != nil {
		if err := m.OutFunc(l); err != nil {
			return err
		}
	}
	m.Level = l
	return nil
}
