package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// UnitFields 提供 alias/url/method 字段，供注册表与拉取日志复用。
func UnitFields(alias, url, method string) logrus.Fields {
	fields := logrus.Fields{
		"url":    url,
		"method": method,
	}
	if alias != "" {
		fields["alias"] = alias
	}
	return fields
}
