// Package embedding 定义文本向量化协作者的边界接口。
//
// 核心系统只依赖本包的 Embedder 接口：输入文本，输出定长且已做 L2 归一化
// 的向量（归一化保证点积等价于余弦相似度）。真正基于神经模型的实现
// 属于外部协作者；本包自带的 HashEmbedder 是确定性的轻量实现，
// 用于测试和无模型环境下的降级运行。
package embedding
