package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/san-kum/jointlock/internal/multibody"
	"github.com/san-kum/jointlock/internal/recorder"
)

const (
	metadataFile  = "metadata.json"
	snapshotsFile = "snapshots.csv"
)

var ErrMalformed = errors.New("storage: malformed snapshot file")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// LockSummary is the lock configuration a run used.
type LockSummary struct {
	Restitution float64 `json:"restitution"`
	LockAngle   float64 `json:"lock_angle"`
	Low         float64 `json:"low"`
	High        float64 `json:"high"`
}

type RunMetadata struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Timestamp      time.Time          `json:"timestamp"`
	Integrator     string             `json:"integrator"`
	Accuracy       float64            `json:"accuracy"`
	RunTime        float64            `json:"run_time"`
	ReportInterval float64            `json:"report_interval"`
	Lengths        []float64          `json:"lengths"`
	Lock           LockSummary        `json:"lock"`
	Transitions    int                `json:"transitions"`
	Stats          map[string]int     `json:"stats"`
	Metrics        map[string]float64 `json:"metrics"`
}

// NewRunID returns "<name>_<unix>_<8 hex>".
func NewRunID(name string, now time.Time) string {
	return fmt.Sprintf("%s_%d_%s", name, now.Unix(), uuid.NewString()[:8])
}

// Save writes snapshots and then metadata into a new run directory and
// returns its ID. An empty meta.ID is filled in. On failure the run
// directory is removed, so a listed run always has both files.
func (s *Store) Save(meta RunMetadata, snaps []recorder.Snapshot) (id string, err error) {
	now := time.Now()
	if meta.Timestamp.IsZero() {
		meta.Timestamp = now
	}
	if meta.ID == "" {
		meta.ID = NewRunID(meta.Name, now)
	}
	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			os.RemoveAll(runDir)
		}
	}()

	err = createFile(filepath.Join(runDir, snapshotsFile), func(w io.Writer) error {
		return WriteCSV(w, snaps)
	})
	if err != nil {
		return "", fmt.Errorf("save %s: %w", meta.ID, err)
	}
	err = createFile(filepath.Join(runDir, metadataFile), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	})
	if err != nil {
		return "", fmt.Errorf("save %s: %w", meta.ID, err)
	}
	return meta.ID, nil
}

// createFile writes path through fn and reports the first of the write and
// close errors.
func createFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// List returns every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

// Latest returns the ID of the most recent run.
func (s *Store) Latest() (string, error) {
	runs, err := s.List()
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", fmt.Errorf("no runs in %s", s.baseDir)
	}
	return runs[len(runs)-1].ID, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadSnapshots reads a run's snapshots back. Pin locations are rebuilt
// from the joint angles and the run's link lengths.
func (s *Store) LoadSnapshots(runID string) ([]recorder.Snapshot, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(filepath.Join(s.baseDir, runID, snapshotsFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	snaps, err := ReadCSV(file)
	if err != nil {
		return nil, err
	}
	for i := range snaps {
		snaps[i].Pins = multibody.JointPositions(meta.Lengths, snaps[i].Q)
	}
	return snaps, nil
}

// WriteCSV writes one row per snapshot. Columns holding vectors are
// numbered, e.g. q0, q1, q2.
func WriteCSV(w io.Writer, snaps []recorder.Snapshot) error {
	cw := csv.NewWriter(w)
	if len(snaps) == 0 {
		cw.Flush()
		return cw.Error()
	}

	nq, nt := len(snaps[0].Q), len(snaps[0].Triggers)
	header := []string{"step", "time"}
	header = append(header, numbered("q", nq)...)
	header = append(header, numbered("u", nq)...)
	header = append(header, "locked", "multiplier", "energy",
		"ang_x", "ang_y", "ang_z", "lin_x", "lin_y", "lin_z")
	header = append(header, numbered("trig", nt)...)
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, snap := range snaps {
		row := []string{strconv.Itoa(snap.Step), formatFloat(snap.Time)}
		row = appendFloats(row, padded(snap.Q, nq))
		row = appendFloats(row, padded(snap.U, nq))
		row = append(row, strconv.FormatBool(snap.Locked), formatFloat(snap.Multiplier), formatFloat(snap.Energy))
		row = appendFloats(row, snap.Angular[:])
		row = appendFloats(row, snap.Linear[:])
		row = appendFloats(row, padded(snap.Triggers, nt))
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses the format written by WriteCSV.
func ReadCSV(r io.Reader) ([]recorder.Snapshot, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []recorder.Snapshot{}, nil
	}

	header := records[0]
	col := make(map[string]int, len(header))
	nq, nt := 0, 0
	for i, name := range header {
		col[name] = i
		switch {
		case strings.HasPrefix(name, "trig"):
			nt++
		case strings.HasPrefix(name, "q"):
			nq++
		}
	}
	for _, name := range []string{"step", "time", "locked", "multiplier", "energy", "ang_z", "lin_x", "lin_y"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrMalformed, name)
		}
	}

	snaps := make([]recorder.Snapshot, 0, len(records)-1)
	for line, rec := range records[1:] {
		p := parser{rec: rec, col: col}
		snap := recorder.Snapshot{
			Step:       p.getInt("step"),
			Time:       p.getFloat("time"),
			Q:          p.vector("q", nq),
			U:          p.vector("u", nq),
			Locked:     p.getBool("locked"),
			Multiplier: p.getFloat("multiplier"),
			Energy:     p.getFloat("energy"),
			Angular:    mgl64.Vec3{p.getFloat("ang_x"), p.getFloat("ang_y"), p.getFloat("ang_z")},
			Linear:     mgl64.Vec3{p.getFloat("lin_x"), p.getFloat("lin_y"), p.getFloat("lin_z")},
		}
		if nt > 0 {
			snap.Triggers = p.vector("trig", nt)
		}
		if p.err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformed, line+2, p.err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// parser keeps the first conversion error of a row.
type parser struct {
	rec []string
	col map[string]int
	err error
}

func (p *parser) field(name string) string {
	i, ok := p.col[name]
	if !ok || i >= len(p.rec) {
		if p.err == nil {
			p.err = fmt.Errorf("missing field %s", name)
		}
		return ""
	}
	return p.rec[i]
}

func (p *parser) getFloat(name string) float64 {
	v, err := strconv.ParseFloat(p.field(name), 64)
	if err != nil && p.err == nil {
		p.err = err
	}
	return v
}

func (p *parser) getInt(name string) int {
	v, err := strconv.Atoi(p.field(name))
	if err != nil && p.err == nil {
		p.err = err
	}
	return v
}

func (p *parser) getBool(name string) bool {
	v, err := strconv.ParseBool(p.field(name))
	if err != nil && p.err == nil {
		p.err = err
	}
	return v
}

func (p *parser) vector(prefix string, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = p.getFloat(fmt.Sprintf("%s%d", prefix, i))
	}
	return out
}

func numbered(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return out
}

func padded(v []float64, n int) []float64 {
	if len(v) == n {
		return v
	}
	out := make([]float64, n)
	copy(out, v)
	return out
}

func appendFloats(row []string, v []float64) []string {
	for _, x := range v {
		row = append(row, formatFloat(x))
	}
	return row
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
