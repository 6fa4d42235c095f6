package transport

import (
	pion "github.com/pion/webrtc/v4"

	"github.com/MSayban1/Audio-Streamer-22222/internal/control"
)

// CreateControlChannel opens the control data channel. The creator calls
// this before the offer is created so the channel is negotiated with the
// session.
func (s *PionSession) CreateControlChannel() (control.Conn, error) {
	ordered := true
	dc, err := s.pc.CreateDataChannel(control.ChannelLabel, &pion.DataChannelInit{
		Ordered: &ordered,
	})
	if err != nil {
		return nil, err
	}
	return &dataChannelConn{dc: dc}, nil
}

// OnControlChannel fires when the remote side announces the control
// channel. The joiner registers this before the answer exchange.
func (s *PionSession) OnControlChannel(fn func(control.Conn)) {
	s.pc.OnDataChannel(func(dc *pion.DataChannel) {
		if dc.Label() != control.ChannelLabel {
			return
		}
		fn(&dataChannelConn{dc: dc})
	})
}

type dataChannelConn struct {
	dc *pion.DataChannel
}

func (d *dataChannelConn) Send(data []byte) error {
	return d.dc.Send(data)
}

func (d *dataChannelConn) OnMessage(fn func([]byte)) {
	d.dc.OnMessage(func(msg pion.DataChannelMessage) {
		fn(msg.Data)
	})
}

func (d *dataChannelConn) OnOpen(fn func()) {
	d.dc.OnOpen(fn)
}

func (d *dataChannelConn) Close() error {
	return d.dc.Close()
}
