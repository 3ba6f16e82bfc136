package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"strings"

	chstore "holder-roles/internal/storage/clickhouse"
)

// RunClickhouseMigrations creates the DSN's database if needed and applies every
// embedded ClickHouse file. The returned connection targets that database.
// ClickHouse DDL here is CREATE ... IF NOT EXISTS, so files are re-applied on
// every start instead of being tracked.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}
	if err := createClickhouseDatabase(ctx, dsn, dbName); err != nil {
		return nil, err
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse %s: %w", dbName, err)
	}

	files, err := migrationFiles(ClickhouseFS, "clickhouse")
	if err != nil {
		conn.Close()
		return nil, err
	}
	for _, name := range files {
		if err := applyClickhouseFile(ctx, conn, name); err != nil {
			conn.Close()
			return nil, fmt.Errorf("migration %s: %w", name, err)
		}
	}

	return conn, nil
}

func createClickhouseDatabase(ctx context.Context, dsn, dbName string) error {
	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return fmt.Errorf("connect clickhouse admin: %w", err)
	}
	defer admin.Close()

	if err := admin.Exec(ctx, "CREATE DATABASE IF NOT EXISTS "+dbName); err != nil {
		return fmt.Errorf("create database %s: %w", dbName, err)
	}
	return nil
}

// applyClickhouseFile runs the statements of one file one by one; the driver
// rejects multi-statement Exec.
func applyClickhouseFile(ctx context.Context, conn *chstore.Conn, name string) error {
	data, err := fs.ReadFile(ClickhouseFS, name)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	content := string(data)
	if err := validateNoSemicolonInStrings(content); err != nil {
		return err
	}
	for _, stmt := range splitStatements(content) {
		if err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply: %w", err)
		}
	}
	return nil
}

// splitStatements drops -- comment lines and splits the rest on semicolons.
// Semicolons inside literals or block comments are not understood;
// validateNoSemicolonInStrings rejects the literal case up front.
func splitStatements(input string) []string {
	var kept []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		kept = append(kept, line)
	}

	var stmts []string
	for _, part := range strings.Split(strings.Join(kept, "\n"), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// validateNoSemicolonInStrings fails when a single-quoted literal contains a
// semicolon. Doubled quotes are treated as escapes.
func validateNoSemicolonInStrings(sql string) error {
	inString := false
	for i := 0; i < len(sql); i++ {
		switch sql[i] {
		case '\'':
			if inString && i+1 < len(sql) && sql[i+1] == '\'' {
				i++
				continue
			}
			inString = !inString
		case ';':
			if inString {
				return fmt.Errorf("semicolon inside string literal at offset %d", i)
			}
		}
	}
	return nil
}

func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("clickhouse dsn missing database")
	}
	return db, nil
}
