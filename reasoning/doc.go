// Package reasoning 实现符号层的高阶认知：事实矛盾仲裁（Arbiter）、
// 概念挖掘（ConceptMiner）、属性泛化（Generalizer）、多跳路径推理
// （Inferencer）以及汇总以上流程的睡眠巩固（Consolidator）。
//
// 所有组件都建立在 memory.Manager 和 store.Store 之上，自身无状态，
// 可以被任意 agent 持有和并发调用。
package reasoning
