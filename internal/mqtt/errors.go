package mqtt

import "errors"

var (
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
	ErrSubscribeFailed  = errors.New("mqtt: subscribe failed")
	ErrTimeout          = errors.New("mqtt: operation timed out")
	ErrInvalidTopic     = errors.New("mqtt: not a light set topic")
	ErrInvalidPayload   = errors.New("mqtt: brightness must be 0..255, on or off")
)
