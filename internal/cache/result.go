package cache

// SkippedRecord 记录一条因格式问题被跳过的输入，Index 为其在输入中的位置。
type SkippedRecord struct {
	Index  int
	Key    string
	Reason string
}

// Result 是批量操作的结果：Written 为成功写入（或接纳）的条目数，Skipped 为跳过的记录。
// Skipped 非空即为部分成功，调用方自行决定是否接受。
type Result struct {
	Written int
	Skipped []SkippedRecord
}

// Partial 表示存在被跳过的记录。
func (r Result) Partial() bool {
	return len(r.Skipped) > 0
}
