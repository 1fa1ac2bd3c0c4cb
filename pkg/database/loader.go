package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"cohort-retention/pkg/models"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z0-9_]+(\.[A-Za-z0-9_]+)?$`)

// Open accepts mariadb://, mysql://, postgres:// and postgresql:// URLs, or a native MySQL DSN.
// It returns the DSN actually handed to the driver.
func Open(dsn string) (*sql.DB, string, error) {
	driver, native, err := driverDSN(dsn)
	if err != nil {
		return nil, "", err
	}
	db, err := sql.Open(driver, native)
	if err != nil {
		return nil, "", err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, native, nil
}

func driverDSN(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "pgx", dsn, nil
	}
	native, err := toMySQLDSN(dsn)
	return "mysql", native, err
}

func toMySQLDSN(dsn string) (string, error) {
	if strings.HasPrefix(dsn, "mariadb://") || strings.HasPrefix(dsn, "mysql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse dsn: %w", err)
		}
		user := ""
		pass := ""
		if u.User != nil {
			user = u.User.Username()
			pw, _ := u.User.Password()
			pass = pw
		}
		host := u.Host
		db := strings.TrimPrefix(u.Path, "/")
		if user == "" || host == "" || db == "" {
			return "", fmt.Errorf("incomplete dsn (user/host/db)")
		}
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=UTC&interpolateParams=true",
			user, pass, host, db), nil
	}
	return dsn, nil
}

// OrderQuery describes where order rows live.
type OrderQuery struct {
	Table      string
	HasStatus  bool
	HasOrderID bool
}

func (q OrderQuery) sql() (string, error) {
	if !tableNameRe.MatchString(q.Table) {
		return "", fmt.Errorf("invalid table name %q", q.Table)
	}
	cols := []string{"user_id", "created_at"}
	if q.HasOrderID {
		cols = append(cols, "order_id")
	}
	if q.HasStatus {
		cols = append(cols, "status")
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), q.Table), nil
}

// LoadOrders reads the whole order table into a snapshot.
func LoadOrders(ctx context.Context, db *sql.DB, q OrderQuery) (models.OrderTable, error) {
	stmt, err := q.sql()
	if err != nil {
		return models.OrderTable{}, err
	}
	rows, err := db.QueryContext(ctx, stmt)
	if err != nil {
		return models.OrderTable{}, fmt.Errorf("query %s: %w", q.Table, err)
	}
	defer rows.Close()
	return scanOrders(rows, q)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanOrders(rows rowScanner, q OrderQuery) (models.OrderTable, error) {
	table := models.OrderTable{HasStatus: q.HasStatus, HasOrderID: q.HasOrderID}
	for rows.Next() {
		var (
			userID    sql.NullString
			createdAt any
			orderID   sql.NullString
			status    sql.NullString
		)
		dest := []any{&userID, &createdAt}
		if q.HasOrderID {
			dest = append(dest, &orderID)
		}
		if q.HasStatus {
			dest = append(dest, &status)
		}
		if err := rows.Scan(dest...); err != nil {
			return models.OrderTable{}, err
		}
		table.Rows = append(table.Rows, models.RawOrder{
			OrderID:   orderID.String,
			UserID:    userID.String,
			CreatedAt: timestampText(createdAt),
			Status:    status.String,
		})
	}
	if err := rows.Err(); err != nil {
		return models.OrderTable{}, err
	}
	return table, nil
}

// timestampText renders driver values so the normalizer can parse them; naive times are UTC.
func timestampText(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case []byte:
		return string(t)
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
