package mysql

import "github.com/ekaya-inc/ekaya-admingen/pkg/adapters/datasource"

func init() {
	datasource.Register(Dialect{})
}
