// Package news 提供持仓相关新闻的能力函数 fetch_news，从 finviz 行情页
// 的新闻表格中抓取最新 5 条标题。
package news
