package postgres

// SQL query constants for audit operations

const (
	// _SQL_INSERT_ENTRY appends an audit entry
	_SQL_INSERT_ENTRY = `
		INSERT INTO audit_entries (time, source, action, item, actor)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	// _SQL_RECENT_ENTRIES lists the newest audit entries
	_SQL_RECENT_ENTRIES = `
		SELECT id, time, source, action, item, actor
		FROM audit_entries
		ORDER BY id DESC
		LIMIT $1`

	// _SQL_INSERT_REDIRECT stores a redirect rule
	_SQL_INSERT_REDIRECT = `
		INSERT INTO redirect_rules (kind, pattern, target, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	// _SQL_RECENT_REDIRECTS lists the newest redirect rules
	_SQL_RECENT_REDIRECTS = `
		SELECT id, kind, pattern, target, created_at
		FROM redirect_rules
		ORDER BY id DESC
		LIMIT $1`
)
