package sqlite

var schema = []string{
	`CREATE TABLE IF NOT EXISTS quizzes (
		id          TEXT PRIMARY KEY,
		title       TEXT    NOT NULL,
		description TEXT    NOT NULL DEFAULT '',
		teacher_id  TEXT    NOT NULL,
		code        TEXT    NOT NULL UNIQUE,
		is_public   INTEGER NOT NULL DEFAULT 0,
		questions   TEXT    NOT NULL DEFAULT '[]',
		created_at  INTEGER NOT NULL,
		updated_at  INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS quiz_sessions (
		id         TEXT PRIMARY KEY,
		quiz_id    TEXT    NOT NULL REFERENCES quizzes (id) ON DELETE CASCADE,
		teacher_id TEXT    NOT NULL,
		started_at INTEGER NOT NULL,
		ended_at   INTEGER,
		status     TEXT    NOT NULL CHECK (status IN ('active', 'completed', 'cancelled')),
		settings   TEXT    NOT NULL DEFAULT '{}'
	);`,
	`CREATE TABLE IF NOT EXISTS session_participants (
		session_id TEXT    NOT NULL REFERENCES quiz_sessions (id) ON DELETE CASCADE,
		student_id TEXT    NOT NULL,
		joined_at  INTEGER NOT NULL,
		score      INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (session_id, student_id)
	);`,
	`CREATE TABLE IF NOT EXISTS student_answers (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id   TEXT    NOT NULL REFERENCES quiz_sessions (id) ON DELETE CASCADE,
		student_id   TEXT    NOT NULL,
		question_id  TEXT    NOT NULL,
		answer_id    TEXT    NOT NULL,
		is_correct   INTEGER NOT NULL,
		submitted_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_quizzes_teacher ON quizzes (teacher_id, created_at DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_quiz_sessions_quiz ON quiz_sessions (quiz_id, status, started_at DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_quiz_sessions_teacher ON quiz_sessions (teacher_id, started_at DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_student_answers_session ON student_answers (session_id, student_id);`,
}
