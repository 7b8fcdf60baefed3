package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/hogu/internal/domain/protocol"
)

// ValidationRules returns seeded rules. Empty kind or version match all.
func (s *SQLStore) ValidationRules(ctx context.Context, kind protocol.Kind, version string) ([]protocol.Rule, error) {
	var (
		where []string
		args  []any
	)
	if kind != "" {
		where = append(where, "event_kind = ?")
		args = append(args, string(kind))
	}
	if version != "" {
		where = append(where, "protocol_version = ?")
		args = append(args, version)
	}
	q := `SELECT event_kind, protocol_version, rule_kind, field, definition, error_message FROM validation_rules`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id ASC"

	var out []protocol.Rule
	err := s.withConn(ctx, func(conn *Conn) error {
		rows, err := conn.QueryContext(ctx, s.d.rebind(q), args...)
		if err != nil {
			return fmt.Errorf("query validation rules: %w", err)
		}
		defer func() { _ = rows.Close() }()
		for rows.Next() {
			var (
				r            protocol.Rule
				kind, ruleKd string
			)
			if err := rows.Scan(&kind, &r.ProtocolVersion, &ruleKd, &r.Field, &r.Definition, &r.ErrorMessage); err != nil {
				return fmt.Errorf("scan validation rule: %w", err)
			}
			r.EventKind, r.RuleKind = protocol.Kind(kind), protocol.RuleKind(ruleKd)
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}
