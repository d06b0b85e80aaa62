// Package search 提供研究文档检索能力函数（CIO 观点、基金/ETF、保险条款）。
//
// 生产环境通过 Azure AI Search REST 接口执行语义检索（Top 3）；未配置端点时
// 使用内嵌示例文档的内存关键词索引。
package search
