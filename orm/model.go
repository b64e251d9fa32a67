package orm

// Model 可嵌入的基础模型，提供自增主键
type Model struct {
	ID int64 `orm:"id,pk"`
}

func (m *Model) PK() int64 {
	return m.ID
}

func (m *Model) SetPK(id int64) {
	m.ID = id
}

// Saved 主键非零表示已保存
func (m *Model) Saved() bool {
	return m.ID != 0
}
