// Package agent 提供协作式 agent 生命周期框架和两个内置 agent：
// 负责巩固观察的 LearningAgent 与负责应答查询的 ReasoningAgent。
//
// 每个 agent 独占一个 goroutine，由 Runner 驱动
// setup → process_step 循环 → teardown；Swarm 统一监督启停。
// agent 之间没有直接引用，全部通信走 bus.EventBus，全部状态走
// memory.Manager。
package agent
