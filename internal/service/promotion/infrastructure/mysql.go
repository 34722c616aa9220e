package infrastructure

import (
	"time"

	sqlmysql "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// MySQLConfig 是连接参数，DSN 用官方驱动的 Config 组装，避免手拼字符串。
type MySQLConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

// OpenMySQL 建立 GORM 连接并迁移本服务拥有的表。
func OpenMySQL(cfg MySQLConfig) (*gorm.DB, error) {
	dsnCfg := sqlmysql.NewConfig()
	dsnCfg.User = cfg.User
	dsnCfg.Passwd = cfg.Password
	dsnCfg.Net = "tcp"
	dsnCfg.Addr = cfg.Host + ":" + cfg.Port
	dsnCfg.DBName = cfg.Database
	dsnCfg.ParseTime = true
	dsnCfg.Loc = time.UTC

	db, err := gorm.Open(mysql.Open(dsnCfg.FormatDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open mysql connection")
	}

	if err := db.AutoMigrate(&PromotionModel{}, &PromotionItemModel{}, &RedemptionModel{}, &UsageCounterModel{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate promotion tables")
	}
	return db, nil
}
