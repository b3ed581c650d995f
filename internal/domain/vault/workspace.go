package vault

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/mediimate/gateway/internal/platform/backend"
	"github.com/mediimate/gateway/internal/platform/validate"
)

// workspace is one doctor's vault state. It is only touched with the
// owning Workspaces lock held.
type workspace struct {
	status     string
	candidates []backend.PatientMatch
	patientID  string
	patient    *backend.PatientInfo
	records    []Record
	total      int
	tab        string
	selectedID string
	edit       *EditBuffer
	touched    time.Time
}

func newWorkspace() *workspace {
	return &workspace{status: StatusIdle, tab: TabReports}
}

func (w *workspace) offer(matches []backend.PatientMatch) {
	*w = workspace{status: StatusSelect, candidates: matches, tab: TabReports, touched: w.touched}
}

func (w *workspace) hasCandidate(patientID string) bool {
	return lo.ContainsBy(w.candidates, func(m backend.PatientMatch) bool { return m.ID == patientID })
}

func (w *workspace) load(patientID string, info backend.PatientInfo, recs []Record, total int) {
	*w = workspace{
		status:    StatusLoaded,
		patientID: patientID,
		patient:   &info,
		records:   recs,
		total:     total,
		tab:       TabReports,
		touched:   w.touched,
	}
}

func (w *workspace) find(id string) (int, bool) {
	for i := range w.records {
		if w.records[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

func (w *workspace) requireLoaded() error {
	if w.status != StatusLoaded {
		return errNoPatient
	}
	return nil
}

func (w *workspace) setTab(tab string) error {
	switch tab {
	case "":
	case TabReports, TabPrescriptions:
		w.tab = tab
	default:
		return validate.Errorf("tab must be %q or %q", TabReports, TabPrescriptions)
	}
	return nil
}

func (w *workspace) selectRecord(id string) (*Record, error) {
	if err := w.requireLoaded(); err != nil {
		return nil, err
	}
	i, ok := w.find(id)
	if !ok {
		return nil, errRecordNotFound
	}
	if w.edit != nil && w.edit.PrescriptionID != id {
		w.edit = nil
	}
	w.selectedID = id
	if w.records[i].Kind == KindPrescription {
		w.tab = TabPrescriptions
	} else {
		w.tab = TabReports
	}
	rec := w.records[i]
	return &rec, nil
}

// beginEdit opens an edit buffer holding a deep copy of the prescription's
// medications.
func (w *workspace) beginEdit(id string) error {
	if _, err := w.selectRecord(id); err != nil {
		return err
	}
	i, _ := w.find(id)
	rx := w.records[i].Prescription
	if rx == nil {
		return validate.Errorf("only prescriptions can be edited")
	}
	w.edit = &EditBuffer{PrescriptionID: id, Medications: cloneMeds(rx.Medications)}
	return nil
}

func (w *workspace) editing() (*EditBuffer, error) {
	if w.edit == nil {
		return nil, errNotEditing
	}
	return w.edit, nil
}

func (w *workspace) editMedication(index int, field, value string) error {
	buf, err := w.editing()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(buf.Medications) {
		return validate.Errorf("no medication at index %d", index)
	}
	return setField(&buf.Medications[index], field, value)
}

func (w *workspace) addMedication() error {
	buf, err := w.editing()
	if err != nil {
		return err
	}
	buf.Medications = append(buf.Medications, backend.Medication{})
	return nil
}

func (w *workspace) removeMedication(index int) error {
	buf, err := w.editing()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(buf.Medications) {
		return validate.Errorf("no medication at index %d", index)
	}
	buf.Medications = append(buf.Medications[:index], buf.Medications[index+1:]...)
	return nil
}

// saved applies a successful save to the cached records. The buffer is
// closed only if it still belongs to the saved prescription.
func (w *workspace) saved(prescriptionID string, meds []backend.Medication) {
	if i, ok := w.find(prescriptionID); ok && w.records[i].Prescription != nil {
		rx := *w.records[i].Prescription
		rx.Medications = cloneMeds(meds)
		w.records[i].Prescription = &rx
	}
	if w.edit != nil && w.edit.PrescriptionID == prescriptionID {
		w.edit = nil
	}
}

func (w *workspace) view() *View {
	v := &View{
		Status:       w.status,
		Candidates:   w.candidates,
		PatientID:    w.patientID,
		Patient:      w.patient,
		TotalRecords: w.total,
		Records:      []Record{},
	}
	if w.status != StatusLoaded {
		return v
	}

	v.Tab = w.tab
	kind := KindReport
	if w.tab == TabPrescriptions {
		kind = KindPrescription
	}
	for _, r := range w.records {
		if r.Kind == KindPrescription {
			v.Counts.Prescriptions++
		} else {
			v.Counts.Reports++
		}
		if r.Kind == kind {
			v.Records = append(v.Records, r)
		}
	}
	if i, ok := w.find(w.selectedID); ok {
		rec := w.records[i]
		v.Selected = &rec
	}
	if w.edit != nil {
		v.Edit = &EditBuffer{PrescriptionID: w.edit.PrescriptionID, Medications: cloneMeds(w.edit.Medications)}
	}
	return v
}

func cloneMeds(meds []backend.Medication) []backend.Medication {
	out := make([]backend.Medication, len(meds))
	for i, m := range meds {
		out[i] = m.Clone()
	}
	return out
}

func setField(m *backend.Medication, field, value string) error {
	switch field {
	case "medicine":
		m.Medicine = value
	case "dosage":
		m.Dosage = backend.FlexString(value)
	case "frequency":
		m.Frequency = backend.FlexString(value)
	case "duration":
		m.Duration = backend.FlexString(value)
	case "instructions":
		m.Instructions = value
	case "food_relation":
		m.FoodRelation = value
	case "timing_display":
		m.TimingDisplay = value
	case "suggested_time":
		m.SuggestedTime = value
	case "meal_instruction":
		m.MealInstruction = value
	case "frequency_per_day":
		return setNumber(&m.FrequencyPerDay, field, value)
	case "duration_days":
		return setNumber(&m.DurationDays, field, value)
	default:
		return validate.Errorf("unknown medication field %q", field)
	}
	return nil
}

// setNumber parses value into *dst. An empty value clears the field.
func setNumber(dst **float64, field, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		*dst = nil
		return nil
	}
	n, err := strconv.ParseFloat(value, 64)
	if err != nil || n < 0 {
		return validate.Errorf("%s must be a non-negative number", field)
	}
	*dst = &n
	return nil
}

// Workspaces holds one workspace per doctor session.
type Workspaces struct {
	mu  sync.Mutex
	m   map[string]*workspace
	now func() time.Time
}

func NewWorkspaces() *Workspaces {
	return &Workspaces{m: make(map[string]*workspace), now: time.Now}
}

// with runs fn on the session's workspace under the lock.
func (ws *Workspaces) with(sessionID string, fn func(w *workspace) error) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	w, ok := ws.m[sessionID]
	if !ok {
		w = newWorkspace()
		ws.m[sessionID] = w
	}
	w.touched = ws.now()
	return fn(w)
}

// Drop discards the session's workspace.
func (ws *Workspaces) Drop(sessionID string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	delete(ws.m, sessionID)
}

// Sweep drops workspaces untouched since cutoff. It has the
// session.Sweeper signature.
func (ws *Workspaces) Sweep(cutoff time.Time) int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	n := 0
	for id, w := range ws.m {
		if w.touched.Before(cutoff) {
			delete(ws.m, id)
			n++
		}
	}
	return n
}
