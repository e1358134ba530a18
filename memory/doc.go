// Package memory 实现混合记忆子系统：短期缓冲、向量缓存与统一门面。
//
// 三层结构：
//
//   - ShortTermMemory：固定容量的环形缓冲，系统唯一的摄入入口，
//     满了淘汰最旧项（接受的背压策略，不是错误）。
//   - VectorCache：全部已落盘向量的内存镜像，重建为稠密矩阵后
//     用点积做 top-k 余弦检索（向量在编码期已归一化）。
//   - Manager：所有 agent 读写观察、记忆、事实、概念的唯一同步点，
//     负责持久层与向量缓存之间的一致性不变量——任何成功的写入
//     在返回前缓存必然已反映刚提交的行。
//
// 绕过 Manager 直接读 store 的消费者不在一致性保证范围内：
// 缓存更新只对门面自身的锁线性化。
package memory
