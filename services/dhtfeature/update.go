package dhtfeature

import "firmatadht-go/firmata"

// Update runs one tick: it collects a finished read, then starts the next
// one when it is due. Ticks while the sensor is mid-read return at once.
func (d *Driver) Update() {
	s := d.sess
	if s == nil || s.dev.Acquiring() {
		return
	}
	now := d.clock.Millis()

	if s.state == StateAcquiring {
		d.setState(s, StateIdle)
		o := outcomeOf(s.dev)
		if d.onOutcome != nil {
			d.onOutcome(s.cfg.Pin, o)
		}
		if o.OK() {
			s.schedule(now, s.cfg.IntervalMs)
			d.host.SendSysex(firmata.DHTSensorData, EncodeReport(o.Reading))
			d.log.V(2).Info("reading", "pin", s.cfg.Pin,
				"celsius", o.Reading.Celsius(), "percent", o.Reading.Percent())
			return
		}
		d.fail(s, now, o.Kind)
	}

	if !due(now, s.fromMs, s.waitMs) {
		return
	}
	var err error
	if s.cfg.Blocking {
		err = s.dev.Acquire()
	} else {
		err = s.dev.AcquireFastLoop()
	}
	if err != nil {
		k := KindOf(err)
		if d.onOutcome != nil {
			d.onOutcome(s.cfg.Pin, Outcome{Kind: k})
		}
		d.fail(s, now, k)
		return
	}
	d.setState(s, StateAcquiring)
}

// due reports whether more than wait ms have passed since from. The
// subtraction is unsigned, so a clock wrap between the two is harmless.
func due(now, from, wait uint32) bool {
	return now-from > wait
}

func (s *session) schedule(now, wait uint32) {
	s.fromMs, s.waitMs = now, wait
}

// fail reports k and schedules a retry RetryIntervalMs from now.
func (d *Driver) fail(s *session, now uint32, k Kind) {
	d.host.SendString(k.Message())
	d.log.V(1).Info("read failed", "pin", s.cfg.Pin, "code", string(k.Code()))
	s.schedule(now, RetryIntervalMs)
}
