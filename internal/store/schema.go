package store

// Collection names a table in the primary store.
type Collection string

const (
	Customers     Collection = "customers"
	Appointments  Collection = "appointments"
	Images        Collection = "images"
	Notes         Collection = "notes"
	NoteVersions  Collection = "note_versions"
	Settings      Collection = "settings"
	ReconcileRuns Collection = "reconcile_runs"
)

// AllCollections lists every collection at the current schema version in
// creation order.
var AllCollections = []Collection{
	Customers, Appointments, Images, Notes, NoteVersions, Settings, ReconcileRuns,
}

// Schema version tracking (stored in PRAGMA user_version):
// 1 - customers, appointments, images
// 2 - notes, note_versions, settings (early shapes)
// 3 - legacy recreation of notes, note_versions, settings; note indexes
// 4 - appointments (customer_id, start_at) composite, customers updated_at
// 5 - reconcile_runs
const CurrentSchemaVersion = 5

// legacyRecreateBelow is the stored version under which the legacy
// collections are dropped and recreated. Their early shapes have no data
// migration path.
const legacyRecreateBelow = 3

var legacyCollections = []Collection{Notes, NoteVersions, Settings}

var tableDDL = map[Collection]string{
	Customers: `CREATE TABLE IF NOT EXISTS customers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		contact_number TEXT NOT NULL DEFAULT '',
		social_media_name TEXT NOT NULL DEFAULT '',
		referral_type TEXT NOT NULL DEFAULT '',
		referral_notes TEXT NOT NULL DEFAULT '',
		notes_html TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	Appointments: `CREATE TABLE IF NOT EXISTS appointments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_id INTEGER NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT '',
		start_at TEXT NOT NULL,
		end_at TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	Images: `CREATE TABLE IF NOT EXISTS images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_id INTEGER NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT '',
		data_url TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	Notes: `CREATE TABLE IF NOT EXISTS notes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_id INTEGER NOT NULL,
		svg TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL DEFAULT '',
		note_number INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		edited_date TEXT,
		restored_at TEXT
	)`,
	NoteVersions: `CREATE TABLE IF NOT EXISTS note_versions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		note_id INTEGER NOT NULL,
		svg TEXT NOT NULL DEFAULT '',
		edited_date TEXT,
		saved_at TEXT NOT NULL
	)`,
	Settings: `CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	ReconcileRuns: `CREATE TABLE IF NOT EXISTS reconcile_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		version INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		scanned INTEGER NOT NULL DEFAULT 0,
		corrupted INTEGER NOT NULL DEFAULT 0,
		conflicts INTEGER NOT NULL DEFAULT 0,
		recovered INTEGER NOT NULL DEFAULT 0,
		mirrored INTEGER NOT NULL DEFAULT 0,
		trimmed INTEGER NOT NULL DEFAULT 0
	)`,
}

type index struct {
	name    string
	table   Collection
	columns string
}

func (ix index) ddl() string {
	return "CREATE INDEX IF NOT EXISTS " + ix.name + " ON " + string(ix.table) + "(" + ix.columns + ")"
}

// schemaStep declares what a version adds. recreate lists collections that
// are dropped and rebuilt when upgrading from below legacyRecreateBelow.
type schemaStep struct {
	version  int
	creates  []Collection
	recreate []Collection
	indexes  []index
}

var schemaSteps = []schemaStep{
	{
		version: 1,
		creates: []Collection{Customers, Appointments, Images},
		indexes: []index{
			{"idx_customers_last_name", Customers, "last_name"},
			{"idx_customers_first_name", Customers, "first_name"},
			{"idx_customers_contact_number", Customers, "contact_number"},
			{"idx_appointments_customer_id", Appointments, "customer_id"},
			{"idx_appointments_start", Appointments, "start_at"},
			{"idx_images_customer_id", Images, "customer_id"},
		},
	},
	{
		version: 2,
		creates: []Collection{Notes, NoteVersions, Settings},
	},
	{
		version:  3,
		recreate: legacyCollections,
		indexes: []index{
			{"idx_notes_customer_id", Notes, "customer_id"},
			{"idx_notes_date", Notes, "date"},
			{"idx_note_versions_note_id", NoteVersions, "note_id"},
		},
	},
	{
		version: 4,
		indexes: []index{
			{"idx_appointments_customer_start", Appointments, "customer_id, start_at"},
			{"idx_customers_updated_at", Customers, "updated_at"},
		},
	},
	{
		version: 5,
		creates: []Collection{ReconcileRuns},
		indexes: []index{
			{"idx_reconcile_runs_started_at", ReconcileRuns, "started_at"},
		},
	},
}

// expectedStructures returns the collections and indexes a store at the
// given version must contain.
func expectedStructures(version int) ([]Collection, []index) {
	var cols []Collection
	var idxs []index
	for _, st := range schemaSteps {
		if st.version > version {
			break
		}
		cols = append(cols, st.creates...)
		idxs = append(idxs, st.indexes...)
	}
	return cols, idxs
}
