// Package types 定义设备自动化编排器的核心数据结构：
// 工作流定义、步骤、执行结果、事件回调和批量任务。
//
// 所有类型都是纯数据，不包含执行逻辑。解释器在 internal/engine，
// 模板解析在 internal/template，并发调度在 internal/fanout。
package types
