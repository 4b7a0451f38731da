// Package metha drives an OAI-PMH 2.0 harvest: it sequences Identify and
// ListRecords requests against a remote repository, chains resumption
// tokens, checkpoints progress so an interrupted harvest resumes exactly
// where it left off, and persists records through a pluggable writer.
package metha

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// wallClockNow is a seam for tests; production code always uses time.Now.
var wallClockNow = time.Now

// DateGranularity is the OAI-PMH date-time precision a repository accepts
// and emits.
type DateGranularity string

const (
	// GranularityAuto defers to whatever the repository's Identify
	// response declares.
	GranularityAuto DateGranularity = "auto"
	// GranularityDay is the YYYY-MM-DD token.
	GranularityDay DateGranularity = "YYYY-MM-DD"
	// GranularitySecond is the YYYY-MM-DDThh:mm:ssZ token. Any
	// granularity the driver does not recognize is treated as this.
	GranularitySecond DateGranularity = "YYYY-MM-DDThh:mm:ssZ"
)

// HarvestConfig is the immutable input to a single harvest run.
type HarvestConfig struct {
	BaseURL  string
	HTTPUser string
	HTTPPass string

	// MetadataPrefix defaults to "oai_dc" when empty.
	MetadataPrefix string
	// Sets, in configured order. Empty means "harvest all" and is
	// normalized internally to a single-element sequence containing the
	// null-set sentinel.
	Sets []string
	// From and Until are caller-supplied date bounds. Until is used
	// verbatim; the driver never truncates it to match granularity.
	From, Until string
	// Granularity is GranularityAuto by default.
	Granularity DateGranularity

	// SkipIdentifyForEndBoundary flips the default the other way: when
	// Granularity is explicit and Until is empty, the driver normally
	// still calls Identify to obtain an end boundary from the server's
	// own clock. Setting this true skips that call and falls back to the
	// local wall clock formatted per the explicit granularity instead.
	// Default false (call Identify) — source-of-truth-is-the-server.
	SkipIdentifyForEndBoundary bool

	// ChunkInterval opts into splitting [from, until] into daily or
	// monthly sub-intervals. Defaults to ChunkNone, which preserves the
	// single-window behavior the testable properties assume.
	ChunkInterval ChunkMode

	// KeepAlive requests long-lived operation from the host process; set
	// true for harvests expected to run for a long time. On Go this is a
	// no-op (the runtime has no process-wide execution time cap to
	// disable) but is modeled explicitly as a field rather than as a
	// hidden global side effect.
	KeepAlive bool

	// Logger, if nil, defaults to logrus' standard logger.
	Logger *logrus.Entry
}

func (c HarvestConfig) metadataPrefix() string {
	if c.MetadataPrefix == "" {
		return "oai_dc"
	}
	return c.MetadataPrefix
}

// Harvester drives the Prepare -> Harvest -> Finalize state machine
// described by the package doc. One Harvester handles one target; create a
// new one per remote repository. Launch is not safe for concurrent use.
type Harvester struct {
	cfg    HarvestConfig
	comm   Communicator
	writer RecordWriter
	state  StateManager
	log    *logrus.Entry

	identify *IdentifyBody
}

// NewHarvester composes a Harvester from its three collaborators.
func NewHarvester(cfg HarvestConfig, comm Communicator, writer RecordWriter, state StateManager) *Harvester {
	if cfg.Granularity == "" {
		cfg.Granularity = GranularityAuto
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	h := &Harvester{
		cfg:    cfg,
		comm:   comm,
		writer: writer,
		state:  state,
	}
	h.log = logger.WithFields(logrus.Fields{
		"base_url":        cfg.BaseURL,
		"metadata_prefix": cfg.metadataPrefix(),
	})
	return h
}

// Launch drives one complete harvest run to completion. It returns nil on
// success, after which no Checkpoint exists and the LastHarvestMarker
// equals the end boundary used during the run. On failure it returns one
// of *TransportError, *OaiProtocolError, *TokenExpiredError,
// *CorruptStateError, or *WriterError.
func (h *Harvester) Launch() error {
	h.applyKeepAliveHint()

	from, err := h.effectiveFrom()
	if err != nil {
		return err
	}

	end, err := h.effectiveEndAndGranularity()
	if err != nil {
		return err
	}

	sets := normalizeSets(h.cfg.Sets)

	cp, err := h.state.LoadState()
	if err != nil {
		var corrupt *CorruptStateError
		if errors.As(err, &corrupt) {
			if cerr := h.state.ClearState(); cerr != nil {
				return cerr
			}
			return corrupt
		}
		return err
	}

	var resumeSet, resumeToken string
	tokenLive := cp != nil
	if tokenLive {
		resumeSet = cp.SetSpec
		resumeToken = cp.ResumptionToken
		from = cp.EffectiveFrom
		end = cp.EffectiveUntil
		h.log.WithFields(logrus.Fields{"set": resumeSet, "from": from, "until": end}).
			Info("resuming harvest from checkpoint")
	}

	for _, set := range sets {
		var liveToken string
		if tokenLive {
			if set != resumeSet {
				h.log.WithField("set", set).Info("skipping set, fast-forwarding to resume target")
				continue
			}
			liveToken = resumeToken
			tokenLive = false
		}
		if err := h.harvestSetChunked(set, from, end, liveToken); err != nil {
			return err
		}
	}

	if err := h.state.SaveDate(end); err != nil {
		return err
	}
	return h.state.ClearState()
}

// effectiveFrom resolves Prepare step 1: caller-supplied from wins;
// otherwise the persisted LastHarvestMarker (possibly empty).
func (h *Harvester) effectiveFrom() (string, error) {
	if h.cfg.From != "" {
		return h.cfg.From, nil
	}
	return h.state.LoadDate()
}

// effectiveEndAndGranularity resolves Prepare step 2: the end boundary and
// the repository's date granularity, calling Identify only when needed.
func (h *Harvester) effectiveEndAndGranularity() (string, error) {
	explicitGranularity := h.cfg.Granularity != "" && h.cfg.Granularity != GranularityAuto

	if h.cfg.Until != "" {
		if explicitGranularity {
			return h.cfg.Until, nil
		}
		// Granularity is auto: still call Identify to learn it, but the
		// end boundary remains the caller's until, used verbatim.
		if _, err := h.callIdentify(); err != nil {
			return "", err
		}
		return h.cfg.Until, nil
	}

	if explicitGranularity && h.cfg.SkipIdentifyForEndBoundary {
		return h.fallbackEndBoundary(), nil
	}

	env, err := h.callIdentify()
	if err != nil {
		return "", err
	}

	granularity := h.resolvedGranularity()
	end := env.ResponseDate
	if granularity == GranularityDay && len(end) > 10 {
		end = end[:10]
	}
	return end, nil
}

// fallbackEndBoundary is used only when the caller both gave an explicit
// granularity and opted out of calling Identify for the end boundary. It
// formats the local wall clock per that granularity, trading the
// server-clock-is-truth guarantee for one fewer round trip.
func (h *Harvester) fallbackEndBoundary() string {
	now := wallClockNow()
	if h.cfg.Granularity == GranularityDay {
		return now.Format("2006-01-02")
	}
	return now.UTC().Format("2006-01-02T15:04:05Z")
}

// resolvedGranularity returns the caller's explicit granularity if given,
// otherwise the granularity learned from the cached Identify response.
// Any value the driver does not recognize is treated as second-level.
func (h *Harvester) resolvedGranularity() DateGranularity {
	if h.cfg.Granularity != "" && h.cfg.Granularity != GranularityAuto {
		return h.cfg.Granularity
	}
	if h.identify == nil {
		return GranularitySecond
	}
	switch h.identify.Granularity {
	case string(GranularityDay):
		return GranularityDay
	case string(GranularitySecond):
		return GranularitySecond
	default:
		return GranularitySecond
	}
}

func (h *Harvester) callIdentify() (*ResponseEnvelope, error) {
	env, err := h.comm.Request(VerbIdentify, Params{})
	if err != nil {
		return nil, err
	}
	if env.HasError() {
		return nil, &OaiProtocolError{Code: env.Error.Code, Text: env.Error.Text}
	}
	ident := env.Identify
	ident.ResponseDate = env.ResponseDate
	h.identify = &ident
	return env, nil
}

// normalizeSets turns the configured set list into an ordered sequence,
// substituting the null-set sentinel (empty string) when none were given.
func normalizeSets(sets []string) []string {
	if len(sets) == 0 {
		return []string{""}
	}
	return sets
}

// harvestSet drives the ListRecords pagination loop for a single set.
// resumeToken, if non-empty, is consumed as the sole parameter of the
// first request of this loop; otherwise the first request carries
// metadataPrefix/from/set/until.
func (h *Harvester) harvestSet(set, from, until, resumeToken string) error {
	log := h.log
	if set != "" {
		log = log.WithField("set", set)
	}

	var params Params
	if resumeToken != "" {
		params = resumptionParams(resumeToken)
	} else {
		params = listRecordsParams(h.cfg.metadataPrefix(), from, set, until)
	}

	for {
		env, err := h.comm.Request(VerbListRecords, params)
		if err != nil {
			return err
		}

		if env.HasError() {
			switch env.Error.Code {
			case "badResumptionToken":
				if err := h.state.ClearState(); err != nil {
					return err
				}
				return &TokenExpiredError{Token: params["resumptionToken"]}
			case "noRecordsMatch":
				if !env.HasResumptionToken() {
					// Clean end: no records for this window.
					return nil
				}
				log.Warn("noRecordsMatch with a live resumption token, continuing")
			default:
				return &OaiProtocolError{Code: env.Error.Code, Text: env.Error.Text}
			}
		}

		if len(env.ListRecords.Records) > 0 {
			if _, err := h.writer.Write(env.ListRecords.Records); err != nil {
				return &WriterError{Err: err}
			}
		}

		nextToken := env.GetResumptionToken()
		if nextToken == "" {
			return nil
		}

		if err := h.state.SaveState(Checkpoint{
			SetSpec:         set,
			ResumptionToken: nextToken,
			EffectiveFrom:   from,
			EffectiveUntil:  until,
		}); err != nil {
			return err
		}
		params = resumptionParams(nextToken)
	}
}

// harvestSetChunked wraps harvestSet with opt-in interval splitting. With
// ChunkNone, or while resuming a live resumption token (whose checkpoint
// already pins a single window), it is exactly harvestSet. Otherwise it
// walks chunkIntervals sequentially, each sub-interval starting its own
// unresumed pagination loop; a crash mid-chunk resumes only that chunk's
// own window, since sub-interval boundaries are not themselves persisted.
func (h *Harvester) harvestSetChunked(set, from, until, resumeToken string) error {
	if h.cfg.ChunkInterval == ChunkNone || resumeToken != "" {
		return h.harvestSet(set, from, until, resumeToken)
	}

	layout := chunkDateLayout(h.resolvedGranularity())
	fromT, err := parseBoundary(from, layout)
	if err != nil {
		return h.harvestSet(set, from, until, resumeToken)
	}
	untilT, err := parseBoundary(until, layout)
	if err != nil {
		return h.harvestSet(set, from, until, resumeToken)
	}

	for _, iv := range chunkIntervals(fromT, untilT, h.cfg.ChunkInterval) {
		ivFrom := iv.Begin.Format(layout)
		ivUntil := iv.End.Format(layout)
		if err := h.harvestSet(set, ivFrom, ivUntil, ""); err != nil {
			return err
		}
	}
	return nil
}

// applyKeepAliveHint requests long-lived operation from the host process.
// Go has no process-wide execution time cap to disable, so this is a
// documented no-op rather than a hidden global flip.
func (h *Harvester) applyKeepAliveHint() {
	if !h.cfg.KeepAlive {
		return
	}
}
