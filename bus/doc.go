// Package bus 实现同步的发布/订阅事件总线，agent 之间靠它松耦合协作。
//
// 派发发生在发布者自己的 goroutine 上：Publish 先在锁内对当前订阅
// 列表做快照，然后在锁外逐个同步调用回调。回调里再次 Publish 不会
// 死锁——派发期间不持锁，这是硬性要求，因为 agent 常在自己订阅的
// 处理器里继续发事件。
//
// 顺序保证：单次 Publish 内按订阅先后调用同一事件类型的监听者；
// 不同线程并发 Publish 之间没有跨调用顺序保证——这是用严格有序
// 换简单性的明确取舍，不是缺陷。
//
// 回调 panic 被逐个捕获并记日志：一个失败的订阅者既不能阻断
// 其余订阅者收到事件，也不能冲垮发布者。
package bus
