package models

// Setting 站点设置镜像（键值对存储）。
// 支付网关等设置由主站推送,本站只读不回推。
type Setting struct {
	Key       string `gorm:"primarykey" json:"key"`  // 配置键
	ValueJSON JSON   `gorm:"type:json" json:"value"` // 配置值
}

// TableName 指定表名
func (Setting) TableName() string {
	return "settings"
}

// StringList 读取配置值中指定字段的字符串列表
func (s *Setting) StringList(field string) []string {
	if s == nil || s.ValueJSON == nil {
		return nil
	}
	raw, ok := s.ValueJSON[field]
	if !ok {
		return nil
	}
	switch items := raw.(type) {
	case []string:
		return items
	case []interface{}:
		list := make([]string, 0, len(items))
		for _, item := range items {
			if v, ok := item.(string); ok && v != "" {
				list = append(list, v)
			}
		}
		return list
	default:
		return nil
	}
}
