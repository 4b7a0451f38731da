package metha

// Hand-written capability-contract doubles for Communicator, RecordWriter,
// and StateManager: a test double is a second implementation of the
// interface, not a runtime patch.

type call struct {
	Verb   Verb
	Params Params
}

func cloneParams(p Params) Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

type fakeCommunicator struct {
	identify    *ResponseEnvelope
	identifyErr error

	listRecords     []*ResponseEnvelope
	listRecordsErrs []error
	lrIdx           int

	calls []call
}

func (f *fakeCommunicator) Request(verb Verb, params Params) (*ResponseEnvelope, error) {
	f.calls = append(f.calls, call{Verb: verb, Params: cloneParams(params)})

	switch verb {
	case VerbIdentify:
		if f.identifyErr != nil {
			return nil, f.identifyErr
		}
		if f.identify == nil {
			return &ResponseEnvelope{}, nil
		}
		return f.identify, nil
	case VerbListRecords:
		idx := f.lrIdx
		f.lrIdx++
		if idx < len(f.listRecordsErrs) && f.listRecordsErrs[idx] != nil {
			return nil, f.listRecordsErrs[idx]
		}
		if idx < len(f.listRecords) {
			return f.listRecords[idx], nil
		}
		return &ResponseEnvelope{}, nil
	default:
		return &ResponseEnvelope{}, nil
	}
}

func (f *fakeCommunicator) listRecordsCalls() []call {
	var out []call
	for _, c := range f.calls {
		if c.Verb == VerbListRecords {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeCommunicator) identifyCallCount() int {
	n := 0
	for _, c := range f.calls {
		if c.Verb == VerbIdentify {
			n++
		}
	}
	return n
}

type fakeWriter struct {
	batches [][]Record
	err     error
	latest  string
}

func (w *fakeWriter) Write(records []Record) (string, error) {
	w.batches = append(w.batches, records)
	if w.err != nil {
		return "", w.err
	}
	w.latest = latestDatestamp(records, w.latest)
	return w.latest, nil
}

type fakeState struct {
	cp           *Checkpoint
	loadStateErr error
	date         string

	saveStateCalls []Checkpoint
	clearCalls     int
	saveDateCalls  []string
}

func (s *fakeState) LoadState() (*Checkpoint, error) {
	return s.cp, s.loadStateErr
}

func (s *fakeState) SaveState(cp Checkpoint) error {
	s.saveStateCalls = append(s.saveStateCalls, cp)
	s.cp = &cp
	return nil
}

func (s *fakeState) ClearState() error {
	s.clearCalls++
	s.cp = nil
	return nil
}

func (s *fakeState) LoadDate() (string, error) {
	return s.date, nil
}

func (s *fakeState) SaveDate(date string) error {
	s.saveDateCalls = append(s.saveDateCalls, date)
	s.date = date
	return nil
}

func records(idsAndDates ...string) []Record {
	var out []Record
	for i := 0; i+1 < len(idsAndDates); i += 2 {
		out = append(out, Record{Header: Header{Identifier: idsAndDates[i], DateStamp: idsAndDates[i+1]}})
	}
	return out
}
