//go:build rp2040 || rp2350

package main

import (
	"context"
	"io"
	"machine"

	"github.com/jangala-dev/tinygo-uartx/uartx"

	"firmatadht-go/types"
)

// uartLink adapts a uartx port to io.ReadWriteCloser. Close only cancels
// pending reads; the hardware stays configured for the next dial.
type uartLink struct {
	u      *uartx.UART
	ctx    context.Context
	cancel context.CancelFunc
}

func (l *uartLink) Read(p []byte) (int, error) {
	n, err := l.u.RecvSomeContext(l.ctx, p)
	if err != nil && l.ctx.Err() != nil {
		return n, io.EOF
	}
	return n, err
}

func (l *uartLink) Write(p []byte) (int, error) { return l.u.Write(p) }

func (l *uartLink) Close() error {
	l.cancel()
	return nil
}

// dialUART picks the UART block that owns the TX pin.
func dialUART(ctx context.Context, c types.UARTConfig) (io.ReadWriteCloser, error) {
	hw := uartx.UART0
	switch c.TxPin {
	case 4, 8, 20, 24:
		hw = uartx.UART1
	}
	if err := hw.Configure(uartx.UARTConfig{
		BaudRate: uint32(c.Baud),
		TX:       machine.Pin(c.TxPin),
		RX:       machine.Pin(c.RxPin),
	}); err != nil {
		return nil, err
	}
	lctx, cancel := context.WithCancel(ctx)
	return &uartLink{u: hw, ctx: lctx, cancel: cancel}, nil
}
