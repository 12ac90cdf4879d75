package db

import (
	"sort"

	"github.com/icon-project/minthub/common/errors"
)

type Database interface {
	GetBucket(id BucketID) (Bucket, error)
	Close() error
}

type BackendType string

type dbCreator func(name string, dir string) (Database, error)

var backends = map[BackendType]dbCreator{}

func registerDBCreator(backend BackendType, creator dbCreator, force bool) {
	_, ok := backends[backend]
	if !force && ok {
		return
	}
	backends[backend] = creator
}

func RegisteredBackendTypes() []string {
	l := make([]string, 0)
	for k := range backends {
		l = append(l, string(k))
	}
	sort.Strings(l)
	return l
}

func Open(dir, dbtype, name string) (Database, error) {
	return openDatabase(BackendType(dbtype), name, dir)
}

func openDatabase(backend BackendType, name string, dir string) (Database, error) {
	dbCreator, ok := backends[backend]
	if !ok {
		return nil, errors.Errorf("UnknownBackend(type=%s)", backend)
	}
	return dbCreator(name, dir)
}
