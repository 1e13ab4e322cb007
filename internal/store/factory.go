package store

import "fmt"

// New opens a Repository for the configured driver.
func New(driver, dsn string) (Repository, error) {
	var (
		s   *SQLStore
		err error
	)
	switch driver {
	case "sqlite", "":
		s, err = NewSQLite(dsn)
	case "postgres":
		s, err = NewPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", driver)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
