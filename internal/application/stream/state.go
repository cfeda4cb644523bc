package stream

// ConnState 多路复用器持有的连接状态
type ConnState int

const (
	StateClosed ConnState = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateShutDown // 终态
)

func (s ConnState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateShutDown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Observer 多路复用器运行指标回调（由 metrics 包实现）
type Observer interface {
	StateChanged(s ConnState)
	SubscribersChanged(n int)
	FrameReceived()
	FrameDropped(reason string)
	RecordsAccepted(n int)
	RecordsDropped(reason string, n int)
	ReconnectScheduled()
}

type nopObserver struct{}

func (nopObserver) StateChanged(ConnState) {}
func (nopObserver) SubscribersChanged(int) {}
func (nopObserver) FrameReceived() {}
func (nopObserver) FrameDropped(string) {}
func (nopObserver) RecordsAccepted(int) {}
func (nopObserver) RecordsDropped(string, int) {}
func (nopObserver) ReconnectScheduled() {}
