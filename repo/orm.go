// Package repo ignore_security_alert_file SQL_INJECTION
package repo

import (
	"context"
	"engage/config"
	"engage/entity"
	"engage/pkg/goutil"
	"reflect"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type txKey struct{}

type TxService interface {
	RunTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type BaseRepo interface {
	TxService

	Create(ctx context.Context, model interface{}) error
	// CreateIgnore inserts data as one batch, skipping rows the store rejects.
	CreateIgnore(ctx context.Context, model interface{}, data interface{}) (int64, error)
	Get(ctx context.Context, model interface{}, f *Filter) error
	GetMany(ctx context.Context, model interface{}, f *Filter) ([]interface{}, *entity.Pagination, error)
	Find(ctx context.Context, model interface{}, dest interface{}, f *Filter) error
	Pluck(ctx context.Context, model interface{}, column string, dest interface{}, f *Filter) error
	Count(ctx context.Context, model interface{}, f *Filter) (uint64, error)
	Update(ctx context.Context, model interface{}, f *Filter, fields map[string]interface{}) (int64, error)
	Delete(ctx context.Context, model interface{}, f *Filter) (int64, error)
	GroupBy(ctx context.Context, model, dest interface{}, selectFields, groupByFields []string, f *Filter) error
	Close(ctx context.Context) error
}

type baseRepo struct {
	db *gorm.DB
}

func NewBaseRepo(_ context.Context, mysqlCfg config.MySQL) (BaseRepo, error) {
	db, err := gorm.Open(mysql.Open(mysqlCfg.ToDSN()), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, err
	}
	return NewBaseRepoWithDB(db), nil
}

func NewBaseRepoWithDB(db *gorm.DB) BaseRepo {
	return &baseRepo{
		db: db,
	}
}

func (r *baseRepo) Create(ctx context.Context, data interface{}) error {
	return r.getDb(ctx).Create(data).Error
}

func (r *baseRepo) CreateIgnore(ctx context.Context, model interface{}, data interface{}) (int64, error) {
	res := r.getDb(ctx).Model(model).Clauses(clause.Insert{Modifier: "IGNORE"}).Create(data)
	return res.RowsAffected, res.Error
}

func (r *baseRepo) Count(ctx context.Context, model interface{}, f *Filter) (uint64, error) {
	var count int64
	if err := r.where(ctx, model, f).Count(&count).Error; err != nil {
		return 0, err
	}
	return uint64(count), nil
}

func (r *baseRepo) Delete(ctx context.Context, model interface{}, f *Filter) (int64, error) {
	sqlQuery, args := ToSqlWithArgs(f)
	res := r.getDb(ctx).Where(sqlQuery, args...).Delete(model)
	return res.RowsAffected, res.Error
}

func (r *baseRepo) Update(ctx context.Context, model interface{}, f *Filter, fields map[string]interface{}) (int64, error) {
	res := r.where(ctx, model, f).Updates(fields)
	return res.RowsAffected, res.Error
}

func (r *baseRepo) GroupBy(ctx context.Context, model, dest interface{}, selectFields, groupByFields []string, f *Filter) error {
	query := r.where(ctx, model, f).
		Select(strings.Join(selectFields, ", ")).
		Group(strings.Join(groupByFields, ", "))

	if f.GetOrder() != "" {
		query = query.Order(f.GetOrder())
	}
	if f.GetLimit() > 0 {
		query = query.Limit(f.GetLimit())
	}

	return query.Scan(dest).Error
}

func (r *baseRepo) Get(ctx context.Context, model interface{}, f *Filter) error {
	return r.where(ctx, model, f).First(model).Error
}

// Find scans every matching row into dest, a pointer to a slice, honouring the filter's order and limit.
func (r *baseRepo) Find(ctx context.Context, model interface{}, dest interface{}, f *Filter) error {
	query := r.where(ctx, model, f)

	if f.GetOrder() != "" {
		query = query.Order(f.GetOrder())
	}
	if f.GetLimit() > 0 {
		query = query.Limit(f.GetLimit())
	}

	return query.Find(dest).Error
}

func (r *baseRepo) Pluck(ctx context.Context, model interface{}, column string, dest interface{}, f *Filter) error {
	query := r.where(ctx, model, f)

	if f.GetOrder() != "" {
		query = query.Order(f.GetOrder())
	}
	if f.GetLimit() > 0 {
		query = query.Limit(f.GetLimit())
	}

	return query.Pluck(column, dest).Error
}

func (r *baseRepo) GetMany(ctx context.Context, model interface{}, f *Filter) ([]interface{}, *entity.Pagination, error) {
	var count int64
	if err := r.where(ctx, model, f).Count(&count).Error; err != nil {
		return nil, nil, err
	}

	var (
		limit = f.Pagination.GetLimit()
		page  = f.Pagination.GetPage()
		order = f.GetOrder()
	)
	if page == 0 {
		page = 1
	}
	if order == "" {
		order = "create_time DESC"
	}

	query := r.where(ctx, model, f).Offset(int((page - 1) * limit)).Order(order)
	if limit > 0 {
		query = query.Limit(int(limit + 1))
	}

	var (
		modelElem = reflect.TypeOf(model).Elem()
		queryRes  = reflect.New(reflect.SliceOf(modelElem)).Interface()
	)
	if err := query.Find(queryRes).Error; err != nil {
		return nil, nil, err
	}

	var (
		resElem = reflect.ValueOf(queryRes).Elem()
		res     = make([]interface{}, resElem.Len())
	)
	for i := 0; i < resElem.Len(); i++ {
		res[i] = resElem.Index(i).Addr().Interface() // return addr
	}

	var hasNext bool
	if limit > 0 && len(res) > int(limit) {
		hasNext = true
		res = res[:limit]
	}

	return res, &entity.Pagination{
		Page:    goutil.Uint32(page),
		Limit:   goutil.Uint32(limit),
		HasNext: goutil.Bool(hasNext),
		Total:   goutil.Int64(count),
	}, nil
}

func (r *baseRepo) RunTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.hasTx(ctx) {
		return fn(ctx)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ctxWithTx := context.WithValue(ctx, txKey{}, tx)
		return fn(ctxWithTx)
	})
}

func (r *baseRepo) Close(_ context.Context) error {
	if r.db != nil {
		sqlDB, err := r.db.DB()
		if err != nil {
			return err
		}

		err = sqlDB.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *baseRepo) where(ctx context.Context, model interface{}, f *Filter) *gorm.DB {
	query := r.getDb(ctx).Model(model)

	if sqlQuery, args := ToSqlWithArgs(f); sqlQuery != "" {
		query = query.Where(sqlQuery, args...)
	}

	return query
}

func (r *baseRepo) getDb(ctx context.Context) *gorm.DB {
	db, ok := ctx.Value(txKey{}).(*gorm.DB)
	if !ok {
		db = r.db
	}
	return db.WithContext(ctx)
}

func (r *baseRepo) hasTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*gorm.DB)
	return ok
}
